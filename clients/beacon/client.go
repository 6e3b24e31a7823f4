// Package beacon provides typed access to a beacon node's REST and
// server-sent-event APIs.
package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/r3labs/sse/v2"
	backoffv1 "gopkg.in/cenkalti/backoff.v1"

	"github.com/DillLabs/blobscan-indexer/clients/common"
	"github.com/DillLabs/blobscan-indexer/shared/backoff"
)

// Config holds the beacon client settings.
type Config struct {
	// Endpoint is the base URL of the beacon node, without the /eth suffix.
	Endpoint string
	// Reconnect drives the event stream reconnection policy. Defaults to
	// backoff.DefaultConfig.
	Reconnect *backoff.Config
	// Timeout bounds individual REST requests. Zero means no timeout; the
	// retry harness above supplies the effective one.
	Timeout time.Duration
}

// Client talks to a single beacon node. It is safe for concurrent use.
type Client struct {
	baseURL   string
	hc        *http.Client
	reconnect *backoff.Config
}

// NewClient constructs a beacon client for the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, errors.New("beacon node endpoint is required")
	}
	reconnect := cfg.Reconnect
	if reconnect == nil {
		reconnect = backoff.DefaultConfig()
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.Endpoint, "/") + "/eth",
		hc:        &http.Client{Timeout: cfg.Timeout},
		reconnect: reconnect,
	}, nil
}

// GetBlock fetches a beacon block. A missed slot yields (nil, nil).
func (c *Client) GetBlock(ctx context.Context, blockId BlockId) (*Block, error) {
	url := fmt.Sprintf("%s/v2/beacon/blocks/%s", c.baseURL, blockId)
	res := &blockResponse{}
	found, err := c.getJSON(ctx, url, res)
	if err != nil || !found {
		return nil, err
	}
	return res.Data, nil
}

// GetBlockHeader fetches a beacon block header. An unknown block yields
// (nil, nil).
func (c *Client) GetBlockHeader(ctx context.Context, blockId BlockId) (*BlockHeader, error) {
	url := fmt.Sprintf("%s/v1/beacon/headers/%s", c.baseURL, blockId)
	res := &blockHeaderResponse{}
	found, err := c.getJSON(ctx, url, res)
	if err != nil || !found {
		return nil, err
	}
	return res.Data, nil
}

// GetHeadValidator fetches a validator from the head state by index. An
// unknown validator yields (nil, nil).
func (c *Client) GetHeadValidator(ctx context.Context, index uint64) (*ValidatorContainer, error) {
	url := fmt.Sprintf("%s/v1/beacon/states/head/validators/%d", c.baseURL, index)
	res := &validatorResponse{}
	found, err := c.getJSON(ctx, url, res)
	if err != nil || !found {
		return nil, err
	}
	return res.Data, nil
}

// GetBlobSidecars fetches the blob sidecars of a block. An unknown block
// yields (nil, nil).
func (c *Client) GetBlobSidecars(ctx context.Context, blockId BlockId) ([]*BlobSidecar, error) {
	url := fmt.Sprintf("%s/v1/beacon/blob_sidecars/%s", c.baseURL, blockId)
	res := &blobSidecarsResponse{}
	found, err := c.getJSON(ctx, url, res)
	if err != nil || !found {
		return nil, err
	}
	return res.Data, nil
}

// SubscribeToEvents subscribes to the beacon event stream for the given
// topics, delivering raw SSE messages on the provided channel. Transient
// stream failures are retried with exponential backoff; once the reconnect
// policy is exhausted the channel is closed. The returned function tears the
// subscription down.
func (c *Client) SubscribeToEvents(topics []Topic, events chan *sse.Event) (func(), error) {
	names := make([]string, len(topics))
	for i, topic := range topics {
		names[i] = topic.String()
	}
	url := fmt.Sprintf("%s/v1/events?topics=%s", c.baseURL, strings.Join(names, ","))

	client := sse.NewClient(url)
	client.ReconnectStrategy = c.reconnectStrategy()
	client.ReconnectNotify = func(err error, next time.Duration) {
		log.WithError(err).WithField("nextAttempt", next).Warn("Beacon event stream disconnected. Reconnecting...")
	}
	if err := client.SubscribeChanRaw(events); err != nil {
		return nil, common.NetworkError(url, err)
	}
	return func() { client.Unsubscribe(events) }, nil
}

// reconnectStrategy adapts the shared retry configuration to the backoff
// flavor the SSE client expects. The elapsed-time bound plays the role of the
// retry count cap.
func (c *Client) reconnectStrategy() backoffv1.BackOff {
	exp := backoffv1.NewExponentialBackOff()
	exp.InitialInterval = c.reconnect.InitialInterval
	exp.Multiplier = c.reconnect.Multiplier
	exp.MaxInterval = c.reconnect.MaxInterval
	exp.MaxElapsedTime = time.Duration(c.reconnect.MaxRetries) * c.reconnect.MaxInterval
	return exp
}

// getJSON performs a GET request and decodes the JSON response into dst. A
// 404 yields (false, nil): the beacon API uses it for missed slots and
// unknown roots, which are not errors for callers.
func (c *Client) getJSON(ctx context.Context, url string, dst interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, common.NetworkError(url, err)
	}
	req.Header.Set("Accept", "application/json")

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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, common.RemoteError(url, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, common.DecodeError(url, err)
	}
	return true, nil
}
