package cmd

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"relayer/config"
	"relayer/db"
	"relayer/dispatch"
	"relayer/jito"
	"relayer/logger"
	"relayer/profit"
	"relayer/relay"
	"relayer/signer"
	"relayer/simulate"
	"relayer/sol"
)

// buildSigner loads the relayer key from settings.
func buildSigner(settings config.Settings) (*signer.Signer, error) {
	key, err := signer.LoadKey(settings.SecretKey, logger.GlobalLogger)
	if err != nil {
		return nil, err
	}
	return signer.New(key)
}

// buildCore wires the admission core from settings. The returned cleanup
// closes the audit database, if one is configured.
func buildCore(settings config.Settings) (*relay.Core, func(), error) {
	s, err := buildSigner(settings)
	if err != nil {
		return nil, nil, err
	}

	var program solana.PublicKey
	if settings.ReimburseProgram != "" {
		program, err = solana.PublicKeyFromBase58(settings.ReimburseProgram)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid %s: %w", config.KeyReimburseProgram, err)
		}
	} else {
		logger.GlobalLogger.Warn("No reimbursement program configured, matching reimburse_relayer under any program")
	}

	rpc := sol.NewClient(settings.SolRpc, settings.SolCommitment, logger.RelayLogger)

	var (
		tips    profit.TipSource
		bundles dispatch.BundleSender
	)
	if settings.JitoEnabled {
		jc := jito.NewClient(jito.Config{
			BlockEngineURL:  settings.BlockEngineURL,
			BundlesURL:      settings.BundlesURL,
			TipFloorRetries: settings.TipFloorRetries,
		}, logger.DispatchLogger)
		tips, bundles = jc, jc
	}

	estimator := profit.NewEstimator(logger.RelayLogger, profit.Config{
		LamportsPerSignature: settings.LamportsPerSignature,
		TipLamports:          settings.TipLamports,
		CacheTTL:             settings.FeeCacheTTL,
	}, rpc, tips)

	gate := simulate.NewGate(logger.RelayLogger, simulate.Config{
		Timeout:          settings.SimulationTimeout,
		ReimburseProgram: program,
	}, rpc, s.PublicKey())

	dispatcher := dispatch.New(logger.DispatchLogger, dispatch.Config{
		BundleTimeout: settings.BundleTimeout,
	}, bundles, rpc)

	cleanup := func() {}
	var recorder relay.Recorder
	if db.Enabled() {
		ch, err := db.NewClickhouse()
		if err != nil {
			return nil, nil, err
		}
		audit := relay.NewAuditLog(logger.RelayLogger, relay.AuditConfig{
			BatchSize:     settings.AuditBatchSize,
			FlushInterval: settings.AuditFlushInterval,
			InsertTimeout: settings.AuditInsertTimeout,
		}, ch)
		recorder = audit
		cleanup = func() {
			audit.Close()
			_ = ch.Close()
		}
	}

	core := relay.NewCore(logger.RelayLogger, relay.Config{
		MarginBps: settings.MarginBps,
		Anomalies: logger.AnomalyLogger,
	}, estimator, gate, s, dispatcher, recorder)

	logger.GlobalLogger.Info("Relayer ready",
		"pubkey", s.PublicKey(),
		"mode", settings.Mode,
		"rpc", settings.SolRpc,
		"jito", settings.JitoEnabled,
		"margin_bps", settings.MarginBps,
		"audit", recorder != nil,
	)
	return core, cleanup, nil
}

func loadSettings() config.Settings {
	settings := config.Load(viper.GetViper())
	if err := logger.SetLevel(settings.LogLevel); err != nil {
		logger.GlobalLogger.Warn("Keeping default log level", "err", err)
	}
	return settings
}
