package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"wager-escrow-backend/internal/handlers"
	"wager-escrow-backend/internal/models"
	"wager-escrow-backend/internal/services"
)

type nopCustodian struct{}

func (nopCustodian) Pull(ctx context.Context, account string, amount int64) error { return nil }
func (nopCustodian) Push(ctx context.Context, account string, amount int64) error { return nil }

// The hub goroutine and the connection's reader both produce frames for the
// same client. Interleaving balance requests with broadcasts must never
// trip the connection's single-writer check.
func TestWebSocketConcurrentWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine, err := services.NewEscrowEngine(nopCustodian{}, nil, "acct_principal", 500)
	require.NoError(t, err)
	require.NoError(t, engine.Deposit(context.Background(), "acct_alice", 1000))

	wsHandler := handlers.NewWebSocketHandler(engine)
	engine.SetBroadcaster(wsHandler)

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set("account_id", "acct_alice")
		wsHandler.HandleWebSocket(c)
	})

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		frame := map[string]string{"type": "BALANCE"}
		if i%2 == 1 {
			frame["type"] = "PING"
		}
		require.NoError(t, conn.WriteJSON(frame))

		wsHandler.BroadcastEvent(&models.Event{
			ID:        "evt_test",
			Type:      models.EventDeposit,
			Account:   "acct_alice",
			Amount:    1000,
			CreatedAt: time.Now(),
		})
	}

	deadline := time.Now().Add(time.Second)
	require.NoError(t, conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed after client close frame")
	}
}
