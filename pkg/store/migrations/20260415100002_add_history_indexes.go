package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
)

// Migration20260415100002AddHistoryIndexes adds indexes for history listing
// and cache expiry queries.
func Migration20260415100002AddHistoryIndexes() store.Migration {
	return store.Migration{
		Version:     20260415100002,
		Description: "Add workflow run and check cache indexes",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_workflow_runs_started_at
				ON workflow_runs(started_at DESC)
			`); err != nil {
				return errors.Wrap(err, "failed to create started_at index")
			}

			if _, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_check_cache_checked_at
				ON check_cache(checked_at)
			`); err != nil {
				return errors.Wrap(err, "failed to create checked_at index")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP INDEX IF EXISTS idx_workflow_runs_started_at"); err != nil {
				return errors.Wrap(err, "failed to drop started_at index")
			}
			if _, err := tx.Exec("DROP INDEX IF EXISTS idx_check_cache_checked_at"); err != nil {
				return errors.Wrap(err, "failed to drop checked_at index")
			}
			return nil
		},
	}
}
