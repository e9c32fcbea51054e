package repository

import (
	"context"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
)

// TokenBackup persists the active token outside process memory so it survives restarts.
type TokenBackup interface {
	// Name identifies the backend in logs.
	Name() string
	// WriteToken replaces the stored record.
	WriteToken(ctx context.Context, record domain.TokenRecord) error
	// ReadToken returns nil, nil when nothing has been stored yet.
	ReadToken(ctx context.Context) (*domain.TokenRecord, error)
}
