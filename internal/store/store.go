package store

import (
	"context"

	"github.com/joescharf/mtool/internal/models"
)

// Store defines the persistence interface for mtool.
type Store interface {
	// Operations
	RecordOperation(ctx context.Context, op *models.Operation) error
	GetOperation(ctx context.Context, id string) (*models.Operation, error)
	ListOperations(ctx context.Context, limit int) ([]*models.Operation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
