package relay

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"relayer/metrics"
	"relayer/types"
)

const (
	DefaultAuditBuffer        = 4096
	DefaultAuditBatchSize     = 256
	DefaultAuditFlushInterval = time.Second
	DefaultAuditInsertTimeout = 5 * time.Second
)

// RecordStore is the audit database.
type RecordStore interface {
	InsertRelayRecords(ctx context.Context, records types.RelayRecords) error
}

type AuditConfig struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	InsertTimeout time.Duration
}

// AuditLog batches relay records and writes them from its own goroutine, so
// a slow or stalled store never holds up a relay response. Records arriving
// while the buffer is full are dropped and counted.
type AuditLog struct {
	log   *slog.Logger
	cfg   AuditConfig
	store RecordStore

	records chan *types.RelayRecord
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewAuditLog(log *slog.Logger, cfg AuditConfig, store RecordStore) *AuditLog {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultAuditBuffer
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultAuditBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultAuditFlushInterval
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = DefaultAuditInsertTimeout
	}
	a := &AuditLog{
		log:     log,
		cfg:     cfg,
		store:   store,
		records: make(chan *types.RelayRecord, cfg.Buffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Record never blocks.
func (a *AuditLog) Record(rec *types.RelayRecord) {
	select {
	case <-a.quit:
		a.drop(rec, "closed")
		return
	default:
	}
	select {
	case a.records <- rec:
	default:
		a.drop(rec, "buffer full")
	}
}

func (a *AuditLog) drop(rec *types.RelayRecord, why string) {
	metrics.IncAuditDropped(1)
	a.log.Warn("Dropped audit record", "reason", why, "signature", rec.Signature, "status", rec.Status)
}

// Close flushes what is buffered and stops the writer. It waits at most one
// insert timeout for the final batch.
func (a *AuditLog) Close() {
	a.once.Do(func() { close(a.quit) })
	<-a.done
}

func (a *AuditLog) run() {
	defer close(a.done)

	ticker := time.NewTicker(a.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make(types.RelayRecords, 0, a.cfg.BatchSize)
	for {
		select {
		case rec := <-a.records:
			batch = append(batch, rec)
			if len(batch) >= a.cfg.BatchSize {
				batch = a.flush(batch)
			}
		case <-ticker.C:
			batch = a.flush(batch)
		case <-a.quit:
			for {
				select {
				case rec := <-a.records:
					batch = append(batch, rec)
				default:
					a.flush(batch)
					return
				}
			}
		}
	}
}

// flush hands batch to the store and returns a fresh slice for the next one.
func (a *AuditLog) flush(batch types.RelayRecords) types.RelayRecords {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.InsertTimeout)
	defer cancel()

	if err := a.store.InsertRelayRecords(ctx, batch); err != nil {
		metrics.IncAuditInsertErrors()
		metrics.IncAuditDropped(len(batch))
		a.log.Error("Failed to write audit records", "count", len(batch), "err", err)
	}
	return make(types.RelayRecords, 0, a.cfg.BatchSize)
}
