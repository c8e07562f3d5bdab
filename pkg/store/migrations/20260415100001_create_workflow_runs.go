package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
)

// Migration20260415100001CreateWorkflowRuns creates the workflow_runs table.
func Migration20260415100001CreateWorkflowRuns() store.Migration {
	return store.Migration{
		Version:     20260415100001,
		Description: "Create workflow_runs table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS workflow_runs (
					id TEXT PRIMARY KEY,
					event TEXT NOT NULL,
					status TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL,
					report TEXT NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create workflow_runs table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS workflow_runs")
			return errors.Wrap(err, "failed to drop workflow_runs table")
		},
	}
}
