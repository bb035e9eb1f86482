package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the allowance store (SQLite).
var Migrations = migrate.NewGroup("allowance")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_allowance_records",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS allowance_records (
    id         TEXT PRIMARY KEY,
    owner      TEXT NOT NULL,
    spender    TEXT NOT NULL,
    action     TEXT NOT NULL,
    remaining  INTEGER NOT NULL DEFAULT 0,
    expires_at INTEGER,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_allowance_records_key ON allowance_records (owner, spender, action);
CREATE INDEX IF NOT EXISTS idx_allowance_records_spender ON allowance_records (spender);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS allowance_records`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "index_allowance_records_expiry",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_allowance_records_expires_at ON allowance_records (expires_at) WHERE expires_at IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP INDEX IF EXISTS idx_allowance_records_expires_at`)
				return err
			},
		},
	)
}
