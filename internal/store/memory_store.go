package store

import (
	"context"
	"sync"
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"time"
)

type memoryRow struct {
	columns   map[models.Field][]byte
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore keeps encoded rows in process. Values are encoded on write and
// decoded on read, so callers never share nested maps with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]*memoryRow
	logger providers.Logger
}

func NewMemoryStore(logger providers.Logger) *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]*memoryRow),
		logger: logger,
	}
}

func (s *MemoryStore) Get(ctx context.Context, tgid string) (*models.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("get", err)
	}
	s.mu.RLock()
	row, ok := s.rows[tgid]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(tgid, row.columns, row.createdAt, row.updatedAt, s.logger), nil
}

func (s *MemoryStore) Insert(ctx context.Context, rec *models.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return storeError("insert", err)
	}
	cols, err := encodeColumns(rec, models.AllFields)
	if err != nil {
		return storeError("insert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[rec.TgID]; exists {
		return ErrAlreadyExists
	}
	s.rows[rec.TgID] = &memoryRow{columns: cols, createdAt: rec.CreatedAt, updatedAt: rec.UpdatedAt}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, rec *models.UserRecord, fields ...models.Field) error {
	if err := ctx.Err(); err != nil {
		return storeError("update", err)
	}
	cols, err := encodeColumns(rec, fields)
	if err != nil {
		return storeError("update", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rec.TgID]
	if !ok {
		return ErrNotFound
	}
	next := make(map[models.Field][]byte, len(row.columns))
	for f, v := range row.columns {
		next[f] = v
	}
	for f, v := range cols {
		next[f] = v
	}
	s.rows[rec.TgID] = &memoryRow{columns: next, createdAt: row.createdAt, updatedAt: rec.UpdatedAt}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
