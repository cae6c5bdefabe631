// Package datasource defines the narrow data-source contract the
// orchestrator executes SQL against, plus a database/sql-backed
// implementation using the sqlite driver.
package datasource

import (
	"context"

	"github.com/querydeck/querydeck/pkg/models"
)

// Handle is the core-to-collaborator contract for tabular data sources.
// Absence of a handle degrades gracefully to placeholder behavior in the
// orchestrator; no method of the core raises because a handle is missing.
type Handle interface {
	// Query executes SQL and returns the result as a frame.
	Query(ctx context.Context, sql string) (*models.Frame, error)
	// RegisterFrame exposes an in-memory frame as a named table so
	// generated SQL can target it.
	RegisterFrame(ctx context.Context, name string, frame *models.Frame) error
	// Tables lists known table names, for best-effort table discovery.
	Tables(ctx context.Context) ([]string, error)
}
