package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/spf13/viper"

	"relayer/logger"
	"relayer/types"
)

const DatabaseName = "relayer"

type ClickhouseDB struct {
	conn driver.Conn
}

// Enabled reports whether an audit database is configured at all.
func Enabled() bool {
	return viper.GetString("CLICKHOUSE_ADDR") != ""
}

// NewClickhouse opens the audit database. A failure here is fatal to the
// caller: a ClickhouseDB without a connection is never handed out.
func NewClickhouse() (Database, error) {
	opts := &clickhouse.Options{
		Addr: []string{viper.GetString("CLICKHOUSE_ADDR")},
		Auth: clickhouse.Auth{
			Database: viper.GetString("CLICKHOUSE_DATABASE"),
			Username: viper.GetString("CLICKHOUSE_USERNAME"),
			Password: viper.GetString("CLICKHOUSE_PASSWORD"),
		},
		DialTimeout:  5 * time.Second,
		Compression:  &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		MaxOpenConns: 10,
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse at %s: %w", opts.Addr[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse at %s: %w", opts.Addr[0], err)
	}
	return &ClickhouseDB{conn: conn}, nil
}

func (d *ClickhouseDB) Close() error {
	return d.conn.Close()
}

func (d *ClickhouseDB) EnsureDatabaseExists() error {
	query := `CREATE DATABASE IF NOT EXISTS ` + DatabaseName
	if err := d.conn.Exec(context.Background(), query); err != nil {
		return fmt.Errorf("failed to ensure database exists: %w", err)
	}
	logger.GlobalLogger.Info("Database ensured to exist", "database", DatabaseName)
	return nil
}

func (d *ClickhouseDB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ` + DatabaseName + `.relay_records
		(
			timestamp DateTime,
			userIdentity String,
			signature String,
			claimedProfit String,
			status LowCardinality(String),
			code LowCardinality(String),
			reason String,
			costLamports UInt64,
			channel LowCardinality(String),
			referenceId String
		)
		ENGINE = MergeTree
		ORDER BY (timestamp, userIdentity)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return err
		}
		logger.GlobalLogger.Info("Check or create table in DB", "query", q)
	}
	return nil
}

func (d *ClickhouseDB) DropTables() error {
	rows, err := d.conn.Query(context.Background(), fmt.Sprintf("SHOW TABLES FROM %s", DatabaseName))
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}

	for _, t := range tables {
		q := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", DatabaseName, t)
		if err := d.conn.Exec(context.Background(), q); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t, err)
		}
	}

	return nil
}

func (d *ClickhouseDB) Exec(query string, args ...any) error {
	return d.conn.Exec(context.Background(), query, args...)
}

// InsertRelayRecords writes records as one batch; ctx bounds both the
// prepare and the send.
func (d *ClickhouseDB) InsertRelayRecords(ctx context.Context, records types.RelayRecords) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := d.conn.PrepareBatch(ctx, "INSERT INTO "+DatabaseName+".relay_records")
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := batch.AppendStruct(r); err != nil {
			return err
		}
	}
	return batch.Send()
}

func (d *ClickhouseDB) QueryRecentRecords(ctx context.Context, limit uint) (types.RelayRecords, error) {
	var records []types.RelayRecord
	err := d.conn.Select(ctx, &records,
		fmt.Sprintf(`SELECT * FROM %s.relay_records ORDER BY timestamp DESC LIMIT %d`, DatabaseName, limit))
	if err != nil {
		return nil, fmt.Errorf("query recent relay records failed: %w", err)
	}

	out := make(types.RelayRecords, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}
