package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wager-escrow-backend/internal/config"
	"wager-escrow-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisService is the write-through mirror of the escrow ledger plus the
// transaction journal and event stream. The in-process engine stays
// authoritative; nothing here is consulted when deciding an operation.
type RedisService struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client: client,
		ctx:    ctx,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) SaveBalance(account string, balance int64) error {
	return s.client.HSet(s.ctx, KeyBalances, account, balance).Err()
}

func (s *RedisService) LoadBalances() (map[string]int64, error) {
	raw, err := s.client.HGetAll(s.ctx, KeyBalances).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %v", err)
	}

	balances := make(map[string]int64, len(raw))
	for account, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance for %s: %v", account, err)
		}
		balances[account] = n
	}

	return balances, nil
}

func (s *RedisService) SaveGame(game *models.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %v", err)
	}

	return s.client.HSet(s.ctx, KeyGames, strconv.FormatUint(game.ID, 10), data).Err()
}

func (s *RedisService) LoadGames() (map[uint64]*models.Game, error) {
	raw, err := s.client.HGetAll(s.ctx, KeyGames).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %v", err)
	}

	games := make(map[uint64]*models.Game, len(raw))
	for id, data := range raw {
		var game models.Game
		if err := json.Unmarshal([]byte(data), &game); err != nil {
			return nil, fmt.Errorf("corrupt game %s: %v", id, err)
		}
		games[game.ID] = &game
	}

	return games, nil
}

func (s *RedisService) SaveState(state *models.EscrowState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal escrow state: %v", err)
	}

	return s.client.Set(s.ctx, KeyState, data, 0).Err()
}

// MirrorMutation writes every key touched by one engine operation in a
// single MULTI/EXEC, so a crash mid-write cannot leave the game hash ahead
// of the counters. Nil game and state are skipped.
func (s *RedisService) MirrorMutation(balances map[string]int64, game *models.Game, state *models.EscrowState) error {
	pipe := s.client.TxPipeline()

	for account, balance := range balances {
		pipe.HSet(s.ctx, KeyBalances, account, balance)
	}

	if game != nil {
		data, err := json.Marshal(game)
		if err != nil {
			return fmt.Errorf("failed to marshal game: %v", err)
		}
		pipe.HSet(s.ctx, KeyGames, strconv.FormatUint(game.ID, 10), data)
	}

	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to marshal escrow state: %v", err)
		}
		pipe.Set(s.ctx, KeyState, data, 0)
	}

	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("failed to mirror mutation: %v", err)
	}

	return nil
}

// LoadState returns nil without error when no state has been persisted yet.
func (s *RedisService) LoadState() (*models.EscrowState, error) {
	data, err := s.client.Get(s.ctx, KeyState).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load escrow state: %v", err)
	}

	var state models.EscrowState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("corrupt escrow state: %v", err)
	}

	return &state, nil
}

func (s *RedisService) SaveTransaction(tx *models.Transaction) error {
	txKey := fmt.Sprintf(KeyTransaction, tx.ID)

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %v", err)
	}

	if err := s.client.Set(s.ctx, txKey, data, TTLTransaction).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	accountKey := fmt.Sprintf(KeyAccountTransactions, tx.Account)
	score := float64(tx.CreatedAt.UnixNano())

	if err := s.client.ZAdd(s.ctx, accountKey, redis.Z{
		Score:  score,
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index transaction: %v", err)
	}

	// Keep only the most recent entries per account.
	s.client.ZRemRangeByRank(s.ctx, accountKey, 0, -(MaxAccountTransactions + 1))
	s.client.Expire(s.ctx, accountKey, TTLTransaction)

	return nil
}

func (s *RedisService) GetAccountTransactions(account string, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > MaxAccountTransactions {
		limit = 50
	}

	accountKey := fmt.Sprintf(KeyAccountTransactions, account)

	txIDs, err := s.client.ZRevRange(s.ctx, accountKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %v", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		txKey := fmt.Sprintf(KeyTransaction, txID)

		data, err := s.client.Get(s.ctx, txKey).Result()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

// PublishEvent pushes the event on the indexer channel and keeps a capped
// backlog for the recent-events query.
func (s *RedisService) PublishEvent(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}

	if err := s.client.Publish(s.ctx, ChannelEvents, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %v", err)
	}

	if err := s.client.ZAdd(s.ctx, KeyEvents, redis.Z{
		Score:  float64(event.CreatedAt.UnixNano()),
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("failed to record event: %v", err)
	}

	s.client.ZRemRangeByRank(s.ctx, KeyEvents, 0, -(MaxRecentEvents + 1))

	return nil
}

func (s *RedisService) GetRecentEvents(limit int64) ([]*models.Event, error) {
	if limit <= 0 || limit > MaxRecentEvents {
		limit = 50
	}

	entries, err := s.client.ZRevRange(s.ctx, KeyEvents, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %v", err)
	}

	var events []*models.Event
	for _, entry := range entries {
		var event models.Event
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			continue
		}
		events = append(events, &event)
	}

	return events, nil
}

func (s *RedisService) CheckRateLimit(account, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, account, action)

	count, err := s.client.Incr(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(s.ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) DeleteBalance(account string) error {
	return s.client.HDel(s.ctx, KeyBalances, account).Err()
}

func (s *RedisService) DeleteGame(id uint64) error {
	return s.client.HDel(s.ctx, KeyGames, strconv.FormatUint(id, 10)).Err()
}

func (s *RedisService) DeleteState() error {
	return s.client.Del(s.ctx, KeyState).Err()
}

func (s *RedisService) DeleteAccountTransactions(account string) error {
	return s.client.Del(s.ctx, fmt.Sprintf(KeyAccountTransactions, account)).Err()
}

func (s *RedisService) ClearRateLimit(account, action string) error {
	return s.client.Del(s.ctx, fmt.Sprintf(KeyRateLimit, account, action)).Err()
}
