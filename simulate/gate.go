// Package simulate is the trust boundary of the relayer: a transaction is only
// signed after a dry run shows it succeeds and actually pays the relayer back.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"relayer/codec"
	"relayer/metrics"
	"relayer/types"
)

const DefaultTimeout = 3 * time.Second

var ErrUnavailable = errors.New("simulation unavailable")

// Ledger dry-runs a transaction against a recent ledger snapshot without
// committing it, reporting the balance of watch before and after from that
// one snapshot.
type Ledger interface {
	Simulate(ctx context.Context, tx *codec.DecodedTransaction, watch solana.PublicKey) (*types.SimulationOutcome, error)
}

type Config struct {
	Timeout          time.Duration
	ReimburseProgram solana.PublicKey
}

// Requirement is what a dry run must show before the relayer signs.
type Requirement struct {
	// Lamports the reimbursement must credit: cost plus margin
	Lamports uint64
	// ChargedFee is the network fee the runtime takes from the relayer as
	// fee payer. The simulated post-balance is already net of it.
	ChargedFee uint64
}

type Gate struct {
	log     *slog.Logger
	cfg     Config
	ledger  Ledger
	relayer solana.PublicKey
}

func NewGate(log *slog.Logger, cfg Config, ledger Ledger, relayer solana.PublicKey) *Gate {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gate{log: log, cfg: cfg, ledger: ledger, relayer: relayer}
}

// Run accepts tx only if the reimbursement instruction targets the relayer,
// simulation succeeds, and the relayer is credited at least req.Lamports once
// the fee it pays is added back. Any simulation fault, including the timeout,
// returns ErrUnavailable: the gate never passes a transaction it could not
// simulate.
func (g *Gate) Run(ctx context.Context, tx *codec.DecodedTransaction, req Requirement) (types.Verdict, error) {
	reimb, err := FindReimbursement(tx, g.cfg.ReimburseProgram, g.relayer)
	if err != nil {
		return types.Reject(types.SimulationFailed, "%v", err), nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	outcome, err := g.ledger.Simulate(ctx, tx, g.relayer)
	metrics.ObserveSimulationDuration(time.Since(start))
	if err != nil {
		return types.Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ctx.Err() != nil {
		return types.Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}

	if !outcome.Succeeded {
		g.log.Info("Simulation failed", "err", outcome.Err, "slot", outcome.Slot, "logs", len(outcome.Logs))
		return types.Reject(types.SimulationFailed, "transaction fails in simulation: %v", outcome.Err), nil
	}

	outcome.ReimbursementObserved = outcome.Credit(req.ChargedFee)
	g.log.Debug("Simulation succeeded",
		"slot", outcome.Slot,
		"units", outcome.UnitsConsumed,
		"pre", outcome.PreBalance,
		"post", outcome.PostBalance,
		"charged_fee", req.ChargedFee,
		"observed", outcome.ReimbursementObserved,
		"declared", reimb.DeclaredTotal(),
		"required", req.Lamports,
	)
	if outcome.ReimbursementObserved < req.Lamports {
		return types.Reject(types.SimulationFailed,
			"simulated reimbursement %d lamports is below required %d (declared %d)",
			outcome.ReimbursementObserved, req.Lamports, reimb.DeclaredTotal()), nil
	}
	return types.Accept(), nil
}
