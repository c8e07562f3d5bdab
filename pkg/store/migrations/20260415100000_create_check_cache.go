package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
)

// Migration20260415100000CreateCheckCache creates the check_cache table.
func Migration20260415100000CreateCheckCache() store.Migration {
	return store.Migration{
		Version:     20260415100000,
		Description: "Create check_cache table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS check_cache (
					hook_id TEXT NOT NULL,
					file_path TEXT NOT NULL,
					file_hash TEXT NOT NULL,
					config_hash TEXT NOT NULL,
					checked_at DATETIME NOT NULL,
					PRIMARY KEY (hook_id, file_path)
				)
			`)
			return errors.Wrap(err, "failed to create check_cache table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS check_cache")
			return errors.Wrap(err, "failed to drop check_cache table")
		},
	}
}
