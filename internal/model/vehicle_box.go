package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VehicleBox связь машины с местом. Наличие записи означает, что машина стоит на этом месте.
type VehicleBox struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	VehicleID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"vehicle_id"`
	BoxID     int64     `gorm:"not null;uniqueIndex" json:"box_id"`
	ParkedAt  time.Time `gorm:"not null;default:now()" json:"parked_at"`
}

func (VehicleBox) TableName() string {
	return "vehicle_boxes"
}

func (vb *VehicleBox) BeforeCreate(tx *gorm.DB) error {
	if vb.ID == uuid.Nil {
		vb.ID = uuid.New()
	}
	if vb.ParkedAt.IsZero() {
		vb.ParkedAt = time.Now()
	}
	return nil
}
