package store

import (
	"context"
	"errors"
	"strings"
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

type HealthAppRow struct {
	ID                  uint           `gorm:"primaryKey"`
	TgID                string         `gorm:"column:tgid;size:64;uniqueIndex;not null"`
	Profile             datatypes.JSON `gorm:"column:profile"`
	Analyses            datatypes.JSON `gorm:"column:analyses"`
	AllHistory          datatypes.JSON `gorm:"column:all_history"`
	RecommendationCache datatypes.JSON `gorm:"column:recommendation_cache"`
	Recommendations     datatypes.JSON `gorm:"column:recommendations"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
}

func (HealthAppRow) TableName() string {
	return "health_app"
}

var fieldColumns = map[models.Field]string{
	models.FieldProfile:             "profile",
	models.FieldAnalyses:            "analyses",
	models.FieldAllHistory:          "all_history",
	models.FieldRecommendationCache: "recommendation_cache",
	models.FieldRecommendations:     "recommendations",
}

func (row *HealthAppRow) columns() map[models.Field][]byte {
	return map[models.Field][]byte{
		models.FieldProfile:             row.Profile,
		models.FieldAnalyses:            row.Analyses,
		models.FieldAllHistory:          row.AllHistory,
		models.FieldRecommendationCache: row.RecommendationCache,
		models.FieldRecommendations:     row.Recommendations,
	}
}

type GormStore struct {
	db      *gorm.DB
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewGormStore(db *gorm.DB, logger providers.Logger, metrics providers.MetricsProviderInterface) *GormStore {
	return &GormStore{db: db, logger: logger, metrics: metrics}
}

// Migrate creates or updates the health_app table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&HealthAppRow{})
}

func (s *GormStore) observe(op string, start time.Time) {
	s.metrics.ObserveStoreDuration(op, time.Since(start))
}

func (s *GormStore) Get(ctx context.Context, tgid string) (*models.UserRecord, error) {
	defer s.observe("get", time.Now())

	var row HealthAppRow
	err := s.db.WithContext(ctx).Where("tgid = ?", tgid).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError("get", err)
	}
	return decodeRecord(row.TgID, row.columns(), row.CreatedAt, row.UpdatedAt, s.logger), nil
}

func (s *GormStore) Insert(ctx context.Context, rec *models.UserRecord) error {
	defer s.observe("insert", time.Now())

	cols, err := encodeColumns(rec, models.AllFields)
	if err != nil {
		return storeError("insert", err)
	}
	row := HealthAppRow{
		TgID:                rec.TgID,
		Profile:             cols[models.FieldProfile],
		Analyses:            cols[models.FieldAnalyses],
		AllHistory:          cols[models.FieldAllHistory],
		RecommendationCache: cols[models.FieldRecommendationCache],
		Recommendations:     cols[models.FieldRecommendations],
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}

	err = s.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return storeError("insert", err)
	}
	return nil
}

// Update assigns every listed column from an explicit map, so gorm writes
// them even when they compare equal to what is stored.
func (s *GormStore) Update(ctx context.Context, rec *models.UserRecord, fields ...models.Field) error {
	defer s.observe("update", time.Now())

	encoded, err := encodeColumns(rec, fields)
	if err != nil {
		return storeError("update", err)
	}
	values := make(map[string]any, len(encoded)+1)
	for f, data := range encoded {
		values[fieldColumns[f]] = datatypes.JSON(data)
	}
	values["updated_at"] = rec.UpdatedAt

	res := s.db.WithContext(ctx).Model(&HealthAppRow{}).Where("tgid = ?", rec.TgID).Updates(values)
	if res.Error != nil {
		return storeError("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storeError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
