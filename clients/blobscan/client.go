// Package blobscan submits indexed records to the blobscan API and tracks
// the persisted synchronization state.
package blobscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/DillLabs/blobscan-indexer/clients/common"
)

// Config holds the blobscan client settings.
type Config struct {
	// Endpoint is the base URL of the blobscan API.
	Endpoint string
	// Secret signs the bearer token authenticating write operations. Empty
	// disables authentication.
	Secret string
	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration
}

// Client talks to a blobscan instance. It is safe for concurrent use.
type Client struct {
	baseURL string
	secret  string
	hc      *http.Client
}

// NewClient constructs a blobscan client for the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, errors.New("blobscan endpoint is required")
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/"),
		secret:  cfg.Secret,
		hc:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// GetSyncState reads the persisted synchronization state. A fresh instance
// with no state yields (nil, nil).
func (c *Client) GetSyncState(ctx context.Context) (*SyncState, error) {
	state := &SyncState{}
	found, err := c.doJSON(ctx, http.MethodGet, "/sync-state", nil, state)
	if err != nil || !found {
		return nil, err
	}
	return state, nil
}

// UpdateSyncState overwrites the fields present in state and leaves the rest
// untouched. The operation is idempotent.
func (c *Client) UpdateSyncState(ctx context.Context, state SyncState) error {
	_, err := c.doJSON(ctx, http.MethodPut, "/sync-state", state, nil)
	return err
}

// UpdateSlot advances the upper synced slot, shorthand for an upper-cursor
// sync state update.
func (c *Client) UpdateSlot(ctx context.Context, slot uint64) error {
	_, err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/slot/%d", slot), nil, nil)
	return err
}

// HandleReorgedSlots marks the given slots as reorged and returns how many
// stored records were affected.
func (c *Client) HandleReorgedSlots(ctx context.Context, slots []uint64) (uint64, error) {
	req := reorgedSlotsRequest{ReorgedSlots: slots}
	res := &reorgedSlotsResponse{}
	if _, err := c.doJSON(ctx, http.MethodPost, "/reorged-slots", req, res); err != nil {
		return 0, err
	}
	return res.TotalUpdatedSlots, nil
}

// Index atomically submits one slot's block, transactions and blobs.
func (c *Client) Index(ctx context.Context, block *Block, transactions []*Transaction, blobs []*Blob) error {
	req := indexRequest{Block: block, Transactions: transactions, Blobs: blobs}
	if req.Transactions == nil {
		req.Transactions = []*Transaction{}
	}
	if req.Blobs == nil {
		req.Blobs = []*Blob{}
	}
	_, err := c.doJSON(ctx, http.MethodPost, "/index", req, nil)
	return err
}

// doJSON performs a JSON request against the blobscan API. A 404 yields
// (false, nil) so callers can model optional resources.
func (c *Client) doJSON(ctx context.Context, method, path string, body, dst interface{}) (bool, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, common.DecodeError(url, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return false, common.NetworkError(url, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		token, err := c.bearerToken()
		if err != nil {
			return false, common.NetworkError(url, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, common.NetworkError(url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, common.RemoteError(url, resp.StatusCode, string(raw))
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return false, common.DecodeError(url, err)
		}
	}
	return true, nil
}

func (c *Client) bearerToken() (string, error) {
	claims := jwt.MapClaims{"iat": time.Now().Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secret))
	if err != nil {
		return "", errors.Wrap(err, "could not sign blobscan API token")
	}
	return token, nil
}
