// Package execution provides typed access to an execution node's JSON-RPC
// API.
package execution

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// Client wraps an ethclient connection. It is safe for concurrent use.
type Client struct {
	eth *ethclient.Client
}

// NewClient dials the execution node at the given endpoint.
func NewClient(ctx context.Context, endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("execution node endpoint is required")
	}
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "could not dial execution node at %s", endpoint)
	}
	return &Client{eth: eth}, nil
}

// BlockByHash fetches a block with its full transaction list. An unknown
// hash yields (nil, nil); whether absence is an error is the caller's call.
func (c *Client) BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error) {
	block, err := c.eth.BlockByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch execution block %s", hash)
	}
	return block, nil
}

// Close tears the underlying RPC connection down.
func (c *Client) Close() {
	c.eth.Close()
}
