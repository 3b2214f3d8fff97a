// Package jito is the bundle channel: block-engine bundle submission and the
// public landed-tip floor.
package jito

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/ybbus/jsonrpc/v3"

	"relayer/utils"
)

var ErrBundleRejected = errors.New(utils.BUNDLE_DROPPED)

type Config struct {
	BlockEngineURL  string
	BundlesURL      string
	TipFloorRetries int
}

type Client struct {
	cfg    Config
	log    *slog.Logger
	engine jsonrpc.RPCClient
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.TipFloorRetries <= 0 {
		cfg.TipFloorRetries = utils.DefaultRetryTimes
	}
	return &Client{cfg: cfg, log: log, engine: jsonrpc.NewClient(cfg.BlockEngineURL)}
}

// SendBundle submits the wire transactions as one atomic bundle and returns
// the block engine's bundle id. It makes exactly one attempt.
func (c *Client) SendBundle(ctx context.Context, txs [][]byte) (string, error) {
	encoded := make([]string, len(txs))
	for i, tx := range txs {
		encoded[i] = base64.StdEncoding.EncodeToString(tx)
	}

	var id string
	err := c.engine.CallFor(ctx, &id, "sendBundle", encoded, map[string]string{"encoding": "base64"})
	var rpcErr *jsonrpc.RPCError
	switch {
	case errors.As(err, &rpcErr):
		return "", fmt.Errorf("%w: %d %s", ErrBundleRejected, rpcErr.Code, rpcErr.Message)
	case err != nil:
		c.log.Warn(utils.RPCERROR, "method", "sendBundle", "err", err)
		return "", fmt.Errorf("sendBundle failed: %w", err)
	case id == "":
		return "", fmt.Errorf("%w: empty bundle id", ErrBundleRejected)
	}
	return id, nil
}

type TipFloor struct {
	Time                        string          `json:"time"`
	LandedTips25thPercentile    decimal.Decimal `json:"landed_tips_25th_percentile"`
	LandedTips50thPercentile    decimal.Decimal `json:"landed_tips_50th_percentile"`
	LandedTips75thPercentile    decimal.Decimal `json:"landed_tips_75th_percentile"`
	EmaLandedTips50thPercentile decimal.Decimal `json:"ema_landed_tips_50th_percentile"`
}

// TipFloor returns the median landed tip in lamports. The endpoint reports SOL.
func (c *Client) TipFloor(ctx context.Context) (uint64, error) {
	var result []TipFloor
	err := utils.GetUrlResponseWithRetry(ctx, c.cfg.BundlesURL+"/tip_floor", nil, &result, c.cfg.TipFloorRetries, c.log)
	if err != nil {
		return 0, fmt.Errorf("GetTipFloor failed: %w", err)
	}
	if len(result) == 0 {
		return 0, errors.New("GetTipFloor returned no samples")
	}
	return utils.SolToLamports(result[0].LandedTips50thPercentile), nil
}
