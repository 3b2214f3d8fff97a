package db

import (
	"context"

	"relayer/types"
)

type Database interface {
	Close() error
	EnsureDatabaseExists() error
	CreateTables() error
	DropTables() error

	Exec(query string, args ...any) error
	InsertRelayRecords(ctx context.Context, records types.RelayRecords) error
	QueryRecentRecords(ctx context.Context, limit uint) (types.RelayRecords, error)
}
