package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wager-escrow-backend/internal/config"
)

// Custodian moves real value between external accounts and the escrow's
// pooled holdings. Pull draws amount from account into the pool; Push pays
// amount out of the pool to account. Any error is a hard failure of the
// enclosing ledger operation.
//
// Implementations must not call back into the escrow engine: the engine is
// mid-mutation while a transfer runs and refuses re-entrant calls.
type Custodian interface {
	Pull(ctx context.Context, account string, amount int64) error
	Push(ctx context.Context, account string, amount int64) error
}

// CustodianClient talks JSON over HTTP to the custody provider.
type CustodianClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCustodianClient(cfg *config.Config) *CustodianClient {
	return &CustodianClient{
		baseURL: strings.TrimRight(cfg.CustodianURL, "/"),
		apiKey:  cfg.CustodianAPIKey,
		client:  &http.Client{Timeout: cfg.CustodianTimeout},
	}
}

type transferRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

func (c *CustodianClient) Pull(ctx context.Context, account string, amount int64) error {
	return c.transfer(ctx, "pull", account, amount)
}

func (c *CustodianClient) Push(ctx context.Context, account string, amount int64) error {
	return c.transfer(ctx, "push", account, amount)
}

func (c *CustodianClient) transfer(ctx context.Context, direction, account string, amount int64) error {
	body, err := json.Marshal(transferRequest{Account: account, Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to marshal transfer: %v", err)
	}

	url := fmt.Sprintf("%s/transfers/%s", c.baseURL, direction)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("custodian %s failed: %v", direction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("custodian %s rejected: status %d: %s", direction, resp.StatusCode, string(detail))
	}

	return nil
}
