package repository

import (
	"context"

	"gorm.io/gorm"

	"yard-service/internal/ports"
)

// ParkingTx выполняет операции парковки в одной транзакции postgres
type ParkingTx struct {
	db *gorm.DB
}

func NewParkingTx(db *gorm.DB) *ParkingTx {
	return &ParkingTx{db: db}
}

func (p *ParkingTx) Do(ctx context.Context, fn func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewVehicleRepository(tx), NewBoxRepository(tx))
	})
}
