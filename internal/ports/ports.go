package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"yard-service/internal/model"
)

// ErrDuplicate нарушение уникальности связи машина-место
var ErrDuplicate = errors.New("duplicate vehicle box association")

// Recognizer внешний движок OCR. Может работать долго и завершаться ошибкой.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// VehicleRegistry чтение реестра машин. Отсутствующая запись возвращается как nil, nil.
type VehicleRegistry interface {
	FindByExactPlate(ctx context.Context, plate string) (*model.Vehicle, error)
	ListPlates(ctx context.Context) ([]string, error)
	FindActiveBox(ctx context.Context, vehicleID uuid.UUID) (*model.Box, error)
}

// SlotRegistry места и связи машина-место
type SlotRegistry interface {
	ListBoxes(ctx context.Context) ([]model.Box, error)
	// FindFirstFree возвращает свободное место с наименьшим id или nil
	FindFirstFree(ctx context.Context) (*model.Box, error)
	SetStatus(ctx context.Context, boxID int64, status model.BoxStatus) error
	CreateAssociation(ctx context.Context, vehicleID uuid.UUID, boxID int64) error
	DeleteAssociation(ctx context.Context, vehicleID uuid.UUID, boxID int64) error
}

// ParkingUnitOfWork выполняет fn как одну атомарную операцию над реестрами.
// Ошибка из fn откатывает все изменения, сделанные внутри.
type ParkingUnitOfWork interface {
	Do(ctx context.Context, fn func(vehicles VehicleRegistry, slots SlotRegistry) error) error
}
