// Package store persists UserRecords keyed by tgid.
package store

import (
	"context"
	"errors"
	"fmt"
	"tgmed/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStore marks every driver failure.
	ErrStore = errors.New("document store failure")
)

type DocumentStore interface {
	Get(ctx context.Context, tgid string) (*models.UserRecord, error)
	Insert(ctx context.Context, rec *models.UserRecord) error
	// Update writes the full current value of every listed field and
	// rec.UpdatedAt, whether or not the value changed.
	Update(ctx context.Context, rec *models.UserRecord, fields ...models.Field) error
	Ping(ctx context.Context) error
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
