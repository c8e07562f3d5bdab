// Package migrations contains all database migrations for devops-tests.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/AgnieszkaZaba/devops-tests/pkg/store"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []store.Migration {
	return []store.Migration{
		Migration20260415100000CreateCheckCache(),
		Migration20260415100001CreateWorkflowRuns(),
		Migration20260415100002AddHistoryIndexes(),
	}
}
