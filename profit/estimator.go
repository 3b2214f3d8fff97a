// Package profit estimates what the relayer fronts for a transaction and
// decides whether a caller's claimed profit justifies fronting it.
package profit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"relayer/codec"
	"relayer/types"
	"relayer/utils"
)

const (
	priorityFeeKey = "priority-fee"
	tipFloorKey    = "tip-floor"

	DefaultLamportsPerSignature = 5000
	DefaultTipLamports          = 100_000
	DefaultCacheTTL             = 5 * time.Second
)

var ErrFeeUnavailable = errors.New("network fee conditions unavailable")

// FeeSource reports the current network compute unit price in micro-lamports.
type FeeSource interface {
	RecentPriorityFee(ctx context.Context) (uint64, error)
}

// TipSource reports the current landed tip floor for the bundle channel, in lamports.
type TipSource interface {
	TipFloor(ctx context.Context) (uint64, error)
}

type Config struct {
	LamportsPerSignature uint64
	TipLamports          uint64
	CacheTTL             time.Duration
}

type Estimator struct {
	log   *slog.Logger
	cfg   Config
	fees  FeeSource
	tips  TipSource
	cache *cache.Cache
}

// NewEstimator builds an estimator. tips may be nil, in which case the
// configured tip is used as is.
func NewEstimator(log *slog.Logger, cfg Config, fees FeeSource, tips TipSource) *Estimator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.LamportsPerSignature == 0 {
		cfg.LamportsPerSignature = DefaultLamportsPerSignature
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Estimator{
		log:   log,
		cfg:   cfg,
		fees:  fees,
		tips:  tips,
		cache: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// EstimateCost derives the lamports the relayer fronts for tx under current
// network conditions. Only the network inputs are cached, never the estimate.
func (e *Estimator) EstimateCost(ctx context.Context, tx *codec.DecodedTransaction) (types.CostEstimate, error) {
	budget := ParseComputeBudget(tx)

	networkPrice, err := e.networkPriorityPrice(ctx)
	if err != nil {
		return types.CostEstimate{}, err
	}
	unitPrice := max(budget.UnitPrice, networkPrice)

	baseFee := e.cfg.LamportsPerSignature * uint64(tx.Header.NumRequiredSignatures)
	cost := types.CostEstimate{
		BaseFee:     baseFee,
		PriorityFee: PriorityFee(unitPrice, budget.UnitLimit),
		Tip:         e.tip(ctx),
		Unit:        "lamports",
		ChargedFee:  baseFee + PriorityFee(budget.UnitPrice, budget.UnitLimit),
	}
	e.log.Debug("Estimated cost",
		"base_fee", cost.BaseFee,
		"priority_fee", cost.PriorityFee,
		"tip", cost.Tip,
		"charged_fee", cost.ChargedFee,
		"declared_unit_price", budget.UnitPrice,
		"network_unit_price", networkPrice,
		"unit_limit", budget.UnitLimit,
	)
	return cost, nil
}

func (e *Estimator) networkPriorityPrice(ctx context.Context) (uint64, error) {
	if v, ok := e.cache.Get(priorityFeeKey); ok {
		return v.(uint64), nil
	}
	if e.fees == nil {
		return 0, nil
	}
	price, err := e.fees.RecentPriorityFee(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFeeUnavailable, err)
	}
	e.cache.Set(priorityFeeKey, price, cache.DefaultExpiration)
	return price, nil
}

// tip never fails: the tip floor is advisory, the configured tip is the floor.
func (e *Estimator) tip(ctx context.Context) uint64 {
	if v, ok := e.cache.Get(tipFloorKey); ok {
		return max(v.(uint64), e.cfg.TipLamports)
	}
	if e.tips == nil {
		return e.cfg.TipLamports
	}
	floor, err := e.tips.TipFloor(ctx)
	if err != nil {
		e.log.Warn("Tip floor unavailable, using configured tip", "tip", e.cfg.TipLamports, "err", err)
		return e.cfg.TipLamports
	}
	e.cache.Set(tipFloorKey, floor, cache.DefaultExpiration)
	return max(floor, e.cfg.TipLamports)
}

// CheckClaim is the network-free short circuit: a non-positive claim is
// rejected before anything else runs.
func CheckClaim(claimed decimal.Decimal) types.Verdict {
	if claimed.Sign() <= 0 {
		return types.Reject(types.UnprofitableClaim, "claimed profit %s is not positive", claimed.String())
	}
	return types.Accept()
}

// RequiredProfit is cost * (1 + marginBps/10000) in native units.
func RequiredProfit(cost types.CostEstimate, marginBps uint64) decimal.Decimal {
	return utils.LamportsToSol(cost.Total()).
		Mul(utils.DecimalFromUint64(utils.BPS_DENOMINATOR + marginBps)).
		Div(decimal.NewFromInt(utils.BPS_DENOMINATOR))
}

// RequiredLamports is the smallest lamport amount covering cost plus margin.
func RequiredLamports(cost types.CostEstimate, marginBps uint64) uint64 {
	return utils.ApplyMarginBps(cost.Total(), marginBps)
}

// Check accepts only if claimed >= cost * (1 + marginBps/10000) and claimed > 0,
// so a zero cost or a zero margin never admits a non-positive claim.
func Check(claimed decimal.Decimal, cost types.CostEstimate, marginBps uint64) types.Verdict {
	if v := CheckClaim(claimed); !v.Accepted() {
		return v
	}
	required := RequiredProfit(cost, marginBps)
	if claimed.LessThan(required) {
		return types.Reject(types.UnprofitableClaim,
			"claimed profit %s is below required %s (cost %d lamports, margin %d bps)",
			claimed.String(), required.String(), cost.Total(), marginBps)
	}
	return types.Accept()
}
