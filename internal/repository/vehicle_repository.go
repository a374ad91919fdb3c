package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yard-service/internal/model"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// FindByExactPlate блокирует строку машины до конца транзакции,
// чтобы парковка и освобождение одной машины не пересекались
func (r *VehicleRepository) FindByExactPlate(ctx context.Context, plate string) (*model.Vehicle, error) {
	if plate == "" {
		return nil, nil
	}
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plate_number = ?", plate).
		First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vehicle, nil
}

func (r *VehicleRepository) ListPlates(ctx context.Context) ([]string, error) {
	var plates []string
	err := r.db.WithContext(ctx).
		Model(&model.Vehicle{}).
		Order("plate_number ASC").
		Pluck("plate_number", &plates).Error
	return plates, err
}

func (r *VehicleRepository) FindActiveBox(ctx context.Context, vehicleID uuid.UUID) (*model.Box, error) {
	var box model.Box
	err := r.db.WithContext(ctx).
		Joins("JOIN vehicle_boxes vb ON vb.box_id = boxes.id").
		Where("vb.vehicle_id = ?", vehicleID).
		First(&box).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &box, nil
}
