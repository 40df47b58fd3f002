// Package settings persists shop-level configuration (shipping thresholds,
// surcharges) as key/value rows so operators can change them without a
// redeploy.
package settings

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prowisla/shop/internal/models"
)

type Service struct {
	DB *gorm.DB
}

func (s *Service) Get(ctx context.Context, key string) (string, bool) {
	var setting models.Setting
	err := s.DB.WithContext(ctx).First(&setting, "key = ?", key).Error
	if err != nil {
		return "", false
	}
	return setting.Value, true
}

// GetDecimal reads a monetary setting, falling back to def when the key is
// absent or unparseable.
func (s *Service) GetDecimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal {
	raw, ok := s.Get(ctx, key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	return d.Round(2)
}

func (s *Service) Set(ctx context.Context, key, value, group string) error {
	setting := models.Setting{Key: key, Value: value, Group: group}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "group", "updated_at"}),
		}).
		Create(&setting).Error
}

func (s *Service) ByGroup(ctx context.Context, group string) ([]models.Setting, error) {
	var out []models.Setting
	if err := s.DB.WithContext(ctx).Where(`"group" = ?`, group).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	err := s.DB.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
