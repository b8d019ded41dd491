package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/common"
	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	pkgrpc "github.com/goran-ethernal/TzIndexor/pkg/rpc"
)

var _ pkgrpc.NodeClient = (*Client)(nil)

// Client talks to the Tezos node REST RPC with retry support.
type Client struct {
	http    *http.Client
	baseURL string
	chain   string
	retry   *config.RetryConfig
	log     *logger.Logger
}

// NewClient creates a node client from configuration.
func NewClient(cfg config.NodeConfig, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node config: %w", err)
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout.Duration},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		chain:   cfg.Chain,
		retry:   cfg.Retry,
		log:     log.WithComponent(common.ComponentNodeClient),
	}, nil
}

// GetHead returns the header of the node's head block.
func (c *Client) GetHead(ctx context.Context) (*pkgrpc.BlockHeader, error) {
	const method = "get_head"

	var header pkgrpc.BlockHeader
	err := c.call(ctx, method, c.blockPath("head")+"/header", func(body []byte) error {
		if err := json.Unmarshal(body, &header); err != nil {
			return err
		}
		if header.Hash == "" {
			return common.Retryablef("head header without hash")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &header, nil
}

// GetBlock returns the block at level on the node's main branch.
func (c *Client) GetBlock(ctx context.Context, level int64) (*pkgrpc.Block, error) {
	return c.getBlock(ctx, "get_block", strconv.FormatInt(level, 10))
}

// GetBlockByHash returns the block with the given hash.
func (c *Client) GetBlockByHash(ctx context.Context, hash string) (*pkgrpc.Block, error) {
	return c.getBlock(ctx, "get_block_by_hash", hash)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) getBlock(ctx context.Context, method, id string) (*pkgrpc.Block, error) {
	var block *pkgrpc.Block
	err := c.call(ctx, method, c.blockPath(id), func(body []byte) error {
		b, err := pkgrpc.DecodeBlock(body)
		if err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return err
		}
		block = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return block, nil
}

func (c *Client) blockPath(id string) string {
	return "/chains/" + url.PathEscape(c.chain) + "/blocks/" + url.PathEscape(id)
}

// call issues GET path with retries and hands the body to decode.
// Errors that stay transient after the retry budget are marked with common.ErrRetryable,
// and so is a 404, which means the node has not reached the requested block yet.
func (c *Client) call(ctx context.Context, method, path string, decode func([]byte) error) error {
	RPCMethodInc(method)
	start := time.Now()
	defer func() { RPCMethodDuration(method, time.Since(start)) }()

	err := retryWithBackoff(ctx, c.retry, method, func() error {
		body, err := c.get(ctx, path)
		if err != nil {
			return err
		}
		return decode(body)
	})
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}

	RPCMethodError(method, errorType(err))

	if IsNotFound(err) || retryableError(err) {
		c.log.Debugf("%s %s failed with a transient error: %v", method, path, err)
		if common.IsRetryable(err) {
			return fmt.Errorf("%s: %w", method, err)
		}
		return fmt.Errorf("%s: %w: %w", method, common.ErrRetryable, err)
	}

	c.log.Errorf("%s %s failed: %v", method, path, err)
	return fmt.Errorf("%s: %w", method, err)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &HTTPError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

func errorType(err error) string {
	switch {
	case IsNotFound(err):
		return "not_found"
	case common.IsRetryable(err):
		return "incomplete"
	case retryableError(err):
		return "transient"
	default:
		return "fatal"
	}
}
