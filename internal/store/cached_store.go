package store

import (
	"context"
	"errors"
	"tgmed/internal/models"
	"tgmed/internal/providers"

	json "github.com/goccy/go-json"
)

const recordKeyPrefix = "record:"

// CachedStore serves Get from zstd-compressed snapshots held in the record
// cache. Writes go to the inner store first and then refresh the snapshot.
type CachedStore struct {
	inner      DocumentStore
	cache      providers.CacheProviderInterface
	compressor CompressorInterface
	logger     providers.Logger
}

func NewCachedStore(inner DocumentStore, cache providers.CacheProviderInterface, compressor CompressorInterface, logger providers.Logger) *CachedStore {
	return &CachedStore{
		inner:      inner,
		cache:      cache,
		compressor: compressor,
		logger:     logger,
	}
}

func recordKey(tgid string) string {
	return recordKeyPrefix + tgid
}

func (s *CachedStore) Get(ctx context.Context, tgid string) (*models.UserRecord, error) {
	if rec, ok := s.load(tgid); ok {
		return rec, nil
	}
	rec, err := s.inner.Get(ctx, tgid)
	if err != nil {
		return nil, err
	}
	s.save(rec)
	return rec, nil
}

func (s *CachedStore) Insert(ctx context.Context, rec *models.UserRecord) error {
	err := s.inner.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.cache.Del(recordKey(rec.TgID))
		}
		return err
	}
	s.save(rec)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, rec *models.UserRecord, fields ...models.Field) error {
	err := s.inner.Update(ctx, rec, fields...)
	if err != nil {
		s.cache.Del(recordKey(rec.TgID))
		return err
	}
	s.save(rec)
	return nil
}

func (s *CachedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *CachedStore) load(tgid string) (*models.UserRecord, bool) {
	data, ok := s.cache.Get(recordKey(tgid))
	if !ok {
		return nil, false
	}
	raw, err := s.compressor.Decompress(data)
	if err != nil {
		s.logger.Warnf(providers.TypeStore, "Dropping undecodable cache entry for %s: %s", tgid, err)
		s.cache.Del(recordKey(tgid))
		return nil, false
	}
	var rec models.UserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warnf(providers.TypeStore, "Dropping undecodable cache entry for %s: %s", tgid, err)
		s.cache.Del(recordKey(tgid))
		return nil, false
	}
	rec.EnsureDefaults()
	return &rec, true
}

func (s *CachedStore) save(rec *models.UserRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warnf(providers.TypeStore, "Skip caching record %s: %s", rec.TgID, err)
		return
	}
	data, err := s.compressor.Compress(raw)
	if err != nil {
		s.logger.Warnf(providers.TypeStore, "Skip caching record %s: %s", rec.TgID, err)
		return
	}
	s.cache.Set(recordKey(rec.TgID), data)
}
