package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yard-service/internal/model"
	"yard-service/internal/ports"
)

type BoxRepository struct {
	db *gorm.DB
}

func NewBoxRepository(db *gorm.DB) *BoxRepository {
	return &BoxRepository{db: db}
}

func (r *BoxRepository) ListBoxes(ctx context.Context) ([]model.Box, error) {
	var boxes []model.Box
	err := r.db.WithContext(ctx).Order("id ASC").Find(&boxes).Error
	return boxes, err
}

// FindFirstFree пропускает места, уже заблокированные параллельной транзакцией:
// два одновременных запроса не получат одно и то же место
func (r *BoxRepository) FindFirstFree(ctx context.Context) (*model.Box, error) {
	var box model.Box
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", model.BoxStatusFree).
		Order("id ASC").
		First(&box).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &box, nil
}

func (r *BoxRepository) SetStatus(ctx context.Context, boxID int64, status model.BoxStatus) error {
	result := r.db.WithContext(ctx).Model(&model.Box{}).
		Where("id = ?", boxID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BoxRepository) CreateAssociation(ctx context.Context, vehicleID uuid.UUID, boxID int64) error {
	err := r.db.WithContext(ctx).Create(&model.VehicleBox{
		VehicleID: vehicleID,
		BoxID:     boxID,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ports.ErrDuplicate
	}
	return err
}

func (r *BoxRepository) DeleteAssociation(ctx context.Context, vehicleID uuid.UUID, boxID int64) error {
	result := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND box_id = ?", vehicleID, boxID).
		Delete(&model.VehicleBox{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
