// Package relay is the admission core: it decides whether the relayer's
// signature goes on a caller's transaction and, if so, dispatches it.
package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gagliardetto/solana-go"

	"relayer/codec"
	"relayer/dispatch"
	"relayer/metrics"
	"relayer/profit"
	"relayer/signer"
	"relayer/simulate"
	"relayer/types"
)

type CostEstimator interface {
	EstimateCost(ctx context.Context, tx *codec.DecodedTransaction) (types.CostEstimate, error)
}

type Gate interface {
	Run(ctx context.Context, tx *codec.DecodedTransaction, req simulate.Requirement) (types.Verdict, error)
}

type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *codec.DecodedTransaction) (*signer.SignedTransaction, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, tx *signer.SignedTransaction) (types.SubmissionResult, error)
}

// Recorder takes one row per decision without blocking the request; see
// AuditLog. A nil Recorder disables the audit log.
type Recorder interface {
	Record(rec *types.RelayRecord)
}

type Config struct {
	MarginBps uint64
	// Anomalies receives signing anomalies, the core log if nil
	Anomalies *slog.Logger
}

type Core struct {
	log        *slog.Logger
	cfg        Config
	estimator  CostEstimator
	gate       Gate
	signer     Signer
	dispatcher Dispatcher
	recorder   Recorder
}

func NewCore(log *slog.Logger, cfg Config, estimator CostEstimator, gate Gate, s Signer, d Dispatcher, recorder Recorder) *Core {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Anomalies == nil {
		cfg.Anomalies = log
	}
	return &Core{
		log:        log,
		cfg:        cfg,
		estimator:  estimator,
		gate:       gate,
		signer:     s,
		dispatcher: d,
		recorder:   recorder,
	}
}

func (c *Core) PublicKey() solana.PublicKey {
	return c.signer.PublicKey()
}

// outcome accumulates what the audit log records about one request.
type outcome struct {
	req       types.RelayRequest
	signature string
	cost      uint64
	result    types.SubmissionResult
}

// Relay runs the admission pipeline for one request. Every non-success outcome
// is a *types.RelayError. Nothing is retried: a retry by the caller re-runs the
// whole pipeline, simulation included.
func (c *Core) Relay(ctx context.Context, req types.RelayRequest) (types.SubmissionResult, error) {
	metrics.IncRelayRequests()
	o := &outcome{req: req}

	res, err := c.relay(ctx, req, o)
	c.finish(o, res, err)
	return res, err
}

func (c *Core) relay(ctx context.Context, req types.RelayRequest, o *outcome) (types.SubmissionResult, error) {
	// claim first: a non-positive claim never reaches the network
	if v := profit.CheckClaim(req.ClaimedProfit); !v.Accepted() {
		return types.SubmissionResult{}, reject(v)
	}

	identity, v := validateRequest(req)
	if !v.Accepted() {
		return types.SubmissionResult{}, reject(v)
	}

	tx, err := codec.DecodeString(req.Transaction, req.Encoding)
	if err != nil {
		return types.SubmissionResult{}, types.NewRelayError(types.MalformedTransaction, err.Error(), nil)
	}
	if v := c.checkStructure(tx, identity); !v.Accepted() {
		return types.SubmissionResult{}, reject(v)
	}

	cost, err := c.estimator.EstimateCost(ctx, tx)
	if err != nil {
		return types.SubmissionResult{}, types.NewRelayError(types.FeeEstimateUnavailable, "could not estimate network cost", err)
	}
	o.cost = cost.Total()
	if v := profit.Check(req.ClaimedProfit, cost, c.cfg.MarginBps); !v.Accepted() {
		return types.SubmissionResult{}, reject(v)
	}

	v, err = c.gate.Run(ctx, tx, simulate.Requirement{
		Lamports:   profit.RequiredLamports(cost, c.cfg.MarginBps),
		ChargedFee: cost.ChargedFee,
	})
	if err != nil {
		return types.SubmissionResult{}, types.NewRelayError(types.SimulationUnavailable, "simulation could not be completed", err)
	}
	if !v.Accepted() {
		return types.SubmissionResult{}, reject(v)
	}

	signed, err := c.signer.Sign(tx)
	if err != nil {
		return types.SubmissionResult{}, types.NewRelayError(types.TamperedOrAlreadySigned, "refused to sign", err)
	}
	o.signature = signed.Signature().String()

	res, err := c.dispatcher.Dispatch(ctx, signed)
	o.result = res
	if err != nil {
		rerr := types.NewRelayError(types.SubmissionFailed, "signed transaction did not reach any channel", err)
		rerr.SignedTransaction = signed.Bytes()
		return res, rerr
	}
	return res, nil
}

func reject(v types.Verdict) error {
	return types.NewRelayError(v.Kind, v.Reason, nil)
}

func validateRequest(req types.RelayRequest) (solana.PublicKey, types.Verdict) {
	switch req.Encoding {
	case "", types.EncodingBase58, types.EncodingBase64:
	default:
		return solana.PublicKey{}, types.Reject(types.InvalidRequest, "unsupported encoding %q", req.Encoding)
	}
	if req.Transaction == "" {
		return solana.PublicKey{}, types.Reject(types.InvalidRequest, "transaction is required")
	}
	identity, err := solana.PublicKeyFromBase58(req.SubmitterIdentity)
	if err != nil {
		return solana.PublicKey{}, types.Reject(types.InvalidRequest, "user_identity is not a valid public key: %v", err)
	}
	return identity, types.Accept()
}

// checkStructure enforces the shape a relayable transaction must have before
// anything is spent on it: the relayer pays, the submitter signs, and every
// slot but the fee payer's already carries a valid signature.
func (c *Core) checkStructure(tx *codec.DecodedTransaction, identity solana.PublicKey) types.Verdict {
	relayer := c.signer.PublicKey()
	if tx.FeePayer() != relayer {
		return types.Reject(types.MalformedTransaction, "fee payer %s is not the relayer %s", tx.FeePayer(), relayer)
	}

	signers := tx.Signers()
	set := mapset.NewThreadUnsafeSet(signers...)
	if set.Cardinality() != len(signers) {
		return types.Reject(types.MalformedTransaction, "duplicate signer keys")
	}
	if identity == relayer {
		return types.Reject(types.MalformedTransaction, "user_identity cannot be the relayer")
	}
	if !set.Contains(identity) {
		return types.Reject(types.MalformedTransaction, "user_identity %s is not a signer", identity)
	}

	if tx.SlotFilled(codec.FeePayerIndex) {
		return types.Reject(types.MalformedTransaction, "fee payer slot is already filled")
	}
	message := tx.Message()
	slots := tx.SignatureSlots()
	for i := range slots {
		if i == codec.FeePayerIndex {
			continue
		}
		if slots[i] == (solana.Signature{}) {
			return types.Reject(types.MalformedTransaction, "signature slot %d (%s) is empty", i, signers[i])
		}
		if !slots[i].Verify(signers[i], message) {
			return types.Reject(types.MalformedTransaction, "signature slot %d (%s) does not verify", i, signers[i])
		}
	}
	return types.Accept()
}

func (c *Core) finish(o *outcome, res types.SubmissionResult, err error) {
	rec := &types.RelayRecord{
		Timestamp:         time.Now().UTC(),
		SubmitterIdentity: o.req.SubmitterIdentity,
		Signature:         o.signature,
		ClaimedProfit:     o.req.ClaimedProfit.String(),
		CostLamports:      o.cost,
		Channel:           string(res.ChannelUsed),
		ReferenceId:       res.ReferenceID,
	}

	var rerr *types.RelayError
	switch {
	case err == nil:
		metrics.IncRelayAccepted()
		rec.Status = types.StatusSuccess
		c.log.Info("Relayed transaction",
			"identity", o.req.SubmitterIdentity,
			"signature", o.signature,
			"channel", res.ChannelUsed,
			"reference", res.ReferenceID,
			"cost", o.cost,
		)
	case errors.As(err, &rerr):
		metrics.IncRelayRejected(string(rerr.Kind))
		rec.Status, rec.Code, rec.Reason = rerr.Kind.ResponseStatus(), string(rerr.Kind), rerr.Reason
		attrs := []any{"code", rerr.Kind, "reason", rerr.Reason, "identity", o.req.SubmitterIdentity, "signature", o.signature}
		switch {
		case rerr.Kind == types.TamperedOrAlreadySigned:
			c.cfg.Anomalies.Error("Signing anomaly", append(attrs, "err", rerr.Err)...)
		case !rerr.Kind.CallerFault():
			c.log.Error("Relay infrastructure fault", append(attrs, "err", rerr.Err)...)
		default:
			c.log.Info("Rejected relay request", attrs...)
		}
	default:
		c.log.Error("Unclassified relay failure", "err", err)
	}

	if c.recorder != nil {
		c.recorder.Record(rec)
	}
}

// Compile-time checks that the production components satisfy the core's ports.
var (
	_ CostEstimator = (*profit.Estimator)(nil)
	_ Gate          = (*simulate.Gate)(nil)
	_ Signer        = (*signer.Signer)(nil)
	_ Dispatcher    = (*dispatch.Dispatcher)(nil)
	_ Recorder      = (*AuditLog)(nil)
)
