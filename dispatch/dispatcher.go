// Package dispatch submits signed transactions: bundle channel first, direct
// broadcast as the fallback.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/singleflight"

	"relayer/metrics"
	"relayer/signer"
	"relayer/types"
	"relayer/utils"
)

const DefaultBundleTimeout = 2 * time.Second

var ErrSubmissionFailed = errors.New("submission failed")

// BundleSender is the privileged bundle channel.
type BundleSender interface {
	SendBundle(ctx context.Context, txs [][]byte) (string, error)
}

// Broadcaster is the public network: direct send plus status lookup.
type Broadcaster interface {
	SendRaw(ctx context.Context, raw []byte) (solana.Signature, error)
	SignatureLanded(ctx context.Context, sig solana.Signature) (bool, error)
}

type Config struct {
	BundleTimeout time.Duration
	CacheCapacity int
}

// Dispatcher never submits the same signature concurrently and never
// resubmits one that was already accepted by a channel.
type Dispatcher struct {
	log     *slog.Logger
	cfg     Config
	bundles BundleSender
	direct  Broadcaster

	flights singleflight.Group
	done    *utils.BoundedCache[solana.Signature, types.SubmissionResult]
}

// New builds a dispatcher. bundles may be nil, which disables the bundle channel.
func New(log *slog.Logger, cfg Config, bundles BundleSender, direct Broadcaster) *Dispatcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.BundleTimeout <= 0 {
		cfg.BundleTimeout = DefaultBundleTimeout
	}
	return &Dispatcher{
		log:     log,
		cfg:     cfg,
		bundles: bundles,
		direct:  direct,
		done:    utils.NewBoundedCache[solana.Signature, types.SubmissionResult](cfg.CacheCapacity),
	}
}

// Dispatch runs TryBundle -> TryDirectBroadcast -> Failed. Accepted results are
// remembered per signature; a repeat dispatch returns the first result.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *signer.SignedTransaction) (types.SubmissionResult, error) {
	sig := tx.Signature()
	if res, ok := d.done.Get(sig); ok {
		d.log.Info("Signature already dispatched", "signature", sig, "channel", res.ChannelUsed)
		return res, nil
	}

	v, err, shared := d.flights.Do(sig.String(), func() (any, error) {
		if res, ok := d.done.Get(sig); ok {
			return res, nil
		}
		res, err := d.dispatch(ctx, sig, tx.Bytes())
		if err == nil {
			d.done.Add(sig, res)
		}
		return res, err
	})
	if shared {
		d.log.Info("Joined in-flight dispatch", "signature", sig)
	}
	return v.(types.SubmissionResult), err
}

func (d *Dispatcher) dispatch(ctx context.Context, sig solana.Signature, raw []byte) (types.SubmissionResult, error) {
	res := types.SubmissionResult{Signature: sig.String()}

	if d.bundles != nil {
		id, err := d.tryBundle(ctx, raw)
		if err == nil {
			d.log.Info("Bundle accepted", "signature", sig, "bundle_id", id)
			metrics.IncSubmission(string(types.ChannelBundle))
			res.ChannelUsed, res.Accepted, res.ReferenceID = types.ChannelBundle, true, id
			return res, nil
		}
		d.log.Warn("Bundle channel unavailable, falling back to direct broadcast", "signature", sig, "err", err)

		// the bundle may have landed even though the call did not return in time
		landed, lerr := d.direct.SignatureLanded(ctx, sig)
		if lerr != nil {
			d.log.Warn("Signature status unavailable", "signature", sig, "err", lerr)
		}
		if landed {
			d.log.Info("Bundle landed despite channel error", "signature", sig)
			metrics.IncSubmission(string(types.ChannelBundle))
			res.ChannelUsed, res.Accepted, res.ReferenceID = types.ChannelBundle, true, sig.String()
			return res, nil
		}
	}

	got, err := d.direct.SendRaw(ctx, raw)
	if err != nil {
		metrics.IncSubmissionFailures()
		d.log.Error("Direct broadcast failed", "signature", sig, "err", err)
		res.ChannelUsed = types.ChannelDirect
		return res, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	if got != sig {
		d.log.Warn("Node reported a different signature", "signature", sig, "reported", got)
	}
	metrics.IncSubmission(string(types.ChannelDirect))
	res.ChannelUsed, res.Accepted, res.ReferenceID = types.ChannelDirect, true, sig.String()
	return res, nil
}

func (d *Dispatcher) tryBundle(ctx context.Context, raw []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.BundleTimeout)
	defer cancel()
	return d.bundles.SendBundle(ctx, [][]byte{raw})
}
