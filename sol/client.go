// Package sol talks to a Solana JSON-RPC node: dry runs, fee sampling and
// direct broadcast.
package sol

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/ybbus/jsonrpc/v3"

	"relayer/codec"
	"relayer/types"
	"relayer/utils"
)

const snapshotAttempts = 3

var ErrSnapshotMismatch = errors.New("balance and simulation read different slots")

// Client is safe for concurrent use.
type Client struct {
	rpc        jsonrpc.RPCClient
	commitment string
	log        *slog.Logger
}

func NewClient(url, commitment string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if commitment == "" {
		commitment = "confirmed"
	}
	return &Client{rpc: jsonrpc.NewClient(url), commitment: commitment, log: log}
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type balanceResult struct {
	Context rpcContext `json:"context"`
	Value   uint64     `json:"value"`
}

type simulatedAccount struct {
	Lamports uint64 `json:"lamports"`
}

type simulateResult struct {
	Context rpcContext `json:"context"`
	Value   struct {
		Err           any                 `json:"err"`
		Logs          []string            `json:"logs"`
		Accounts      []*simulatedAccount `json:"accounts"`
		UnitsConsumed uint64              `json:"unitsConsumed"`
	} `json:"value"`
}

type prioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

type signatureStatus struct {
	Slot               uint64 `json:"slot"`
	Err                any    `json:"err"`
	ConfirmationStatus string `json:"confirmationStatus"`
}

type signatureStatusesResult struct {
	Context rpcContext         `json:"context"`
	Value   []*signatureStatus `json:"value"`
}

func (c *Client) call(ctx context.Context, out any, method string, params ...any) error {
	if err := c.rpc.CallFor(ctx, out, method, params...); err != nil {
		c.log.Warn(utils.RPCERROR, "method", method, "err", err)
		return fmt.Errorf("RPC %s failed: %w", method, err)
	}
	return nil
}

// Balance returns the lamports held by account at the client commitment.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.balance(ctx, account)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

func (c *Client) balance(ctx context.Context, account solana.PublicKey) (*balanceResult, error) {
	var res balanceResult
	err := c.call(ctx, &res, "getBalance", account.String(), map[string]any{"commitment": c.commitment})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Simulate dry-runs tx and reports the balance of watch before and after,
// both read from the same bank. A pair read from different slots is retried
// a few times and then refused, since a transfer landing in between would be
// counted as this transaction's credit. Signature verification is off because
// the fee-payer slot is still empty.
func (c *Client) Simulate(ctx context.Context, tx *codec.DecodedTransaction, watch solana.PublicKey) (*types.SimulationOutcome, error) {
	for attempt := 1; ; attempt++ {
		out, err := c.simulateAtBalanceSlot(ctx, tx, watch)
		if !errors.Is(err, ErrSnapshotMismatch) || attempt == snapshotAttempts {
			return out, err
		}
		c.log.Debug("Simulation read a different slot than the balance, retrying", "attempt", attempt, "err", err)
	}
}

func (c *Client) simulateAtBalanceSlot(ctx context.Context, tx *codec.DecodedTransaction, watch solana.PublicKey) (*types.SimulationOutcome, error) {
	pre, err := c.balance(ctx, watch)
	if err != nil {
		return nil, err
	}

	var res simulateResult
	err = c.call(ctx, &res, "simulateTransaction",
		base64.StdEncoding.EncodeToString(codec.Encode(tx)),
		map[string]any{
			"encoding":               "base64",
			"commitment":             c.commitment,
			"minContextSlot":         pre.Context.Slot,
			"sigVerify":              false,
			"replaceRecentBlockhash": false,
			"accounts": map[string]any{
				"encoding":  "base64",
				"addresses": []string{watch.String()},
			},
		},
	)
	if err != nil {
		return nil, err
	}
	if res.Context.Slot != pre.Context.Slot {
		return nil, fmt.Errorf("%w: balance at slot %d, simulation at slot %d", ErrSnapshotMismatch, pre.Context.Slot, res.Context.Slot)
	}

	out := &types.SimulationOutcome{
		Succeeded:     res.Value.Err == nil,
		Err:           res.Value.Err,
		Logs:          res.Value.Logs,
		Slot:          res.Context.Slot,
		PreBalance:    pre.Value,
		PostBalance:   pre.Value,
		UnitsConsumed: res.Value.UnitsConsumed,
	}
	if len(res.Value.Accounts) == 1 && res.Value.Accounts[0] != nil {
		out.PostBalance = res.Value.Accounts[0].Lamports
	} else if out.Succeeded {
		return nil, fmt.Errorf("simulation returned no state for %s", watch)
	}
	return out, nil
}

// RecentPriorityFee is the median compute unit price over the recent slots
// the node reports, in micro-lamports.
func (c *Client) RecentPriorityFee(ctx context.Context) (uint64, error) {
	var fees []prioritizationFee
	if err := c.call(ctx, &fees, "getRecentPrioritizationFees"); err != nil {
		return 0, err
	}
	return medianFee(fees), nil
}

func medianFee(fees []prioritizationFee) uint64 {
	if len(fees) == 0 {
		return 0
	}
	prices := make([]uint64, len(fees))
	for i, f := range fees {
		prices[i] = f.PrioritizationFee
	}
	slices.Sort(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return prices[mid-1]/2 + prices[mid]/2 + (prices[mid-1]%2+prices[mid]%2)/2
}

// SendRaw broadcasts a fully signed transaction. Preflight is skipped: the
// transaction was already simulated.
func (c *Client) SendRaw(ctx context.Context, raw []byte) (solana.Signature, error) {
	var sig string
	err := c.call(ctx, &sig, "sendTransaction",
		base64.StdEncoding.EncodeToString(raw),
		map[string]any{
			"encoding":            "base64",
			"skipPreflight":       true,
			"preflightCommitment": c.commitment,
			"maxRetries":          0,
		},
	)
	if err != nil {
		return solana.Signature{}, err
	}
	parsed, err := solana.SignatureFromBase58(sig)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("node returned invalid signature %q: %w", sig, err)
	}
	return parsed, nil
}

// SignatureLanded reports whether sig is known to the node without error,
// at processed commitment or better.
func (c *Client) SignatureLanded(ctx context.Context, sig solana.Signature) (bool, error) {
	var res signatureStatusesResult
	err := c.call(ctx, &res, "getSignatureStatuses",
		[]string{sig.String()},
		map[string]any{"searchTransactionHistory": false},
	)
	if err != nil {
		return false, err
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}
	return res.Value[0].Err == nil, nil
}
