package model

import "time"

type BoxStatus string

const (
	BoxStatusFree     BoxStatus = "FREE"
	BoxStatusOccupied BoxStatus = "OCCUPIED"
)

// Box парковочное место во дворе
type Box struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Status    BoxStatus `gorm:"type:box_status;not null;default:FREE" json:"status"`
	Notes     *string   `gorm:"type:varchar(100)" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Box) TableName() string {
	return "boxes"
}

func (b Box) IsFree() bool {
	return b.Status == BoxStatusFree
}
