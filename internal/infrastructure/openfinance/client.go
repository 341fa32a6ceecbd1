// Package openfinance is the HTTP client for the Open Finance aggregation
// API. It implements provider.Client; API error codes are surfaced as
// *provider.Error so the classifier can decide retry behavior.
package openfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"finsync/internal/domain/provider"
)

const (
	defaultTimeout   = 180 * time.Second
	balancesPath     = "/balances"
	transactionsPath = "/transactions/sync"
)

// Client handles communication with the aggregation API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ provider.Client = (*Client)(nil)

// NewClient creates an aggregation API client. Outbound requests are traced
// via the otelhttp transport.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
	}
}

// BalanceResponse represents the API response for balance data.
type BalanceResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		AccountID string  `json:"accountId"`
		Current   float64 `json:"current"`
		Available float64 `json:"available"`
		Currency  string  `json:"currencyCode"`
	} `json:"data"`
}

// TransactionsSyncResponse represents one page of the incremental feed.
type TransactionsSyncResponse struct {
	Success  bool                `json:"success"`
	Added    []remoteTransaction `json:"added"`
	Modified []remoteTransaction `json:"modified"`
	Removed  []struct {
		TransactionID string `json:"transactionId"`
	} `json:"removed"`
	NextCursor string `json:"nextCursor"`
	HasMore    bool   `json:"hasMore"`
}

type remoteTransaction struct {
	TransactionID string  `json:"transactionId"`
	AccountID     string  `json:"accountId"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Category      *string `json:"category"`
	Date          string  `json:"date"`
	Pending       bool    `json:"pending"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error_code"`
	Message string `json:"message"`
}

// FetchBalances fetches current balances for every account reachable with
// the credential.
func (c *Client) FetchBalances(ctx context.Context, credential string) ([]provider.Balance, error) {
	body, err := c.get(ctx, c.baseURL+balancesPath, credential)
	if err != nil {
		return nil, err
	}

	var resp BalanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balances response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("API returned success=false")
	}

	balances := make([]provider.Balance, 0, len(resp.Data))
	for _, b := range resp.Data {
		balances = append(balances, provider.Balance{
			RemoteAccountID: b.AccountID,
			Current:         b.Current,
			Available:       b.Available,
			Currency:        b.Currency,
		})
	}
	return balances, nil
}

// FetchTransactionsIncremental fetches one diff page. An empty cursor asks
// for the feed from the beginning.
func (c *Client) FetchTransactionsIncremental(ctx context.Context, credential, cursor string) (*provider.TransactionsPage, error) {
	endpoint := c.baseURL + transactionsPath
	if cursor != "" {
		endpoint += "?cursor=" + url.QueryEscape(cursor)
	}

	body, err := c.get(ctx, endpoint, credential)
	if err != nil {
		return nil, err
	}

	var resp TransactionsSyncResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("API returned success=false")
	}

	page := &provider.TransactionsPage{
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
	}
	for _, tx := range resp.Added {
		page.Added = append(page.Added, toRemote(tx))
	}
	for _, tx := range resp.Modified {
		page.Modified = append(page.Modified, toRemote(tx))
	}
	for _, r := range resp.Removed {
		page.Removed = append(page.Removed, r.TransactionID)
	}
	return page, nil
}

func toRemote(tx remoteTransaction) provider.RemoteTransaction {
	return provider.RemoteTransaction{
		RemoteID:        tx.TransactionID,
		RemoteAccountID: tx.AccountID,
		Amount:          tx.Amount,
		Description:     tx.Description,
		Category:        tx.Category,
		Date:            tx.Date,
		Pending:         tx.Pending,
	}
}

func (c *Client) get(ctx context.Context, url, credential string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", credential))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
		// Typed so the classifier can read the code.
		return nil, &provider.Error{Code: errResp.Error, Message: errResp.Message}
	}

	return body, nil
}
