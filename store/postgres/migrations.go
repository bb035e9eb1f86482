package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the allowance store.
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
    remaining  BIGINT NOT NULL DEFAULT 0 CHECK (remaining >= 0),
    expires_at BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
