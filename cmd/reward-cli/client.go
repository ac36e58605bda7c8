package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"rewardcenter/core/types"
	"rewardcenter/crypto"
)

const (
	retryAttempts   = 3
	retryBase       = 250 * time.Millisecond
	retryMultiplier = 2
)

// client talks to the gateway. Transport failures, 429 and 5xx responses are
// retried with exponential backoff; every other failure is final.
type client struct {
	baseURL string
	token   string
	http    *http.Client
	// newBackOff is replaced in tests to keep retries fast.
	newBackOff func() backoff.BackOff
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = retryBase
			b.Multiplier = retryMultiplier
			b.RandomizationFactor = 0
			b.MaxElapsedTime = 0
			return backoff.WithMaxRetries(b, retryAttempts-1)
		},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

type receiptError struct {
	Code    uint32 `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type receipt struct {
	TxHash    string        `json:"txHash"`
	Seq       uint64        `json:"seq"`
	StateRoot string        `json:"stateRoot"`
	Success   bool          `json:"success"`
	Events    []types.Event `json:"events"`
	Error     *receiptError `json:"error,omitempty"`
}

type account struct {
	Address string          `json:"address"`
	Record  string          `json:"record"`
	Data    json.RawMessage `json:"data"`
}

func (c *client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			var payload struct {
				Error string `json:"error"`
			}
			msg := strings.TrimSpace(string(data))
			if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
				msg = payload.Error
			}
			apiErr := &apiError{Status: resp.StatusCode, Message: msg}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
}

// submit sends a signed transaction and fails unless it committed.
func (c *client) submit(ctx context.Context, tx *types.Transaction) (*receipt, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	var out receipt
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		if out.Error != nil {
			return &out, fmt.Errorf("transaction %s failed: %s (%d): %s", out.TxHash, out.Error.Kind, out.Error.Code, out.Error.Message)
		}
		return &out, fmt.Errorf("transaction %s failed", out.TxHash)
	}
	return &out, nil
}

var errNotFound = errors.New("account not found")

// record fetches the decoded record at addr into out and returns its name.
func (c *client) record(ctx context.Context, addr crypto.Address, out interface{}) (string, error) {
	var acct account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.String(), nil, &acct); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", errNotFound, addr)
		}
		return "", err
	}
	if out != nil {
		if err := json.Unmarshal(acct.Data, out); err != nil {
			return acct.Record, fmt.Errorf("decode %s record: %w", acct.Record, err)
		}
	}
	return acct.Record, nil
}

// rawRecord fetches the record at addr as generic JSON.
func (c *client) rawRecord(ctx context.Context, addr crypto.Address) (*account, error) {
	var acct account
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.String(), nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}
