package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yard-service/internal/metrics"
	"yard-service/internal/model"
	"yard-service/internal/ports"
	"yard-service/internal/utils"
)

const DefaultMaxPlateDistance = 1

type ParkingService struct {
	uow              ports.ParkingUnitOfWork
	maxPlateDistance int
	log              zerolog.Logger
}

func NewParkingService(uow ports.ParkingUnitOfWork, maxPlateDistance int, log zerolog.Logger) *ParkingService {
	if maxPlateDistance < 0 {
		maxPlateDistance = DefaultMaxPlateDistance
	}
	return &ParkingService{
		uow:              uow,
		maxPlateDistance: maxPlateDistance,
		log:              log.With().Str("component", "parking").Logger(),
	}
}

type Allocation struct {
	Box       model.Box
	VehicleID uuid.UUID
	Plate     string
	// Fuzzy машина найдена по ближайшему номеру, а не по точному совпадению
	Fuzzy bool
}

// Allocate ставит машину на первое свободное место.
// Если точного совпадения номера нет, берется ближайший зарегистрированный номер в пределах допуска.
func (s *ParkingService) Allocate(ctx context.Context, principal model.Principal, rawPlate string) (*Allocation, error) {
	if !principal.CanOperateYard() {
		return nil, ErrPermissionDenied
	}

	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is empty", ErrInvalidInput)
	}

	var allocation *Allocation
	err := s.uow.Do(ctx, func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error {
		vehicle, fuzzy, err := s.resolveVehicle(ctx, vehicles, plate)
		if err != nil {
			return err
		}
		if vehicle == nil {
			return fmt.Errorf("%w: no such vehicle", ErrNotFound)
		}

		active, err := vehicles.FindActiveBox(ctx, vehicle.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: already parked", ErrInvalidInput)
		}

		box, err := slots.FindFirstFree(ctx)
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("%w: no free slot", ErrNotFound)
		}

		if err := slots.SetStatus(ctx, box.ID, model.BoxStatusOccupied); err != nil {
			return err
		}
		if err := slots.CreateAssociation(ctx, vehicle.ID, box.ID); err != nil {
			return err
		}

		box.Status = model.BoxStatusOccupied
		allocation = &Allocation{Box: *box, VehicleID: vehicle.ID, Plate: vehicle.PlateNumber, Fuzzy: fuzzy}
		return nil
	})
	if err != nil {
		err = translateRegistryError(err)
		s.record("allocate", err)
		s.log.Info().Err(err).Str("plate", plate).Msg("allocation rejected")
		return nil, err
	}

	s.record("allocate", nil)
	if allocation.Fuzzy {
		metrics.FuzzyPlateMatches.Inc()
	}
	s.log.Info().
		Str("plate", allocation.Plate).
		Str("read_plate", plate).
		Bool("fuzzy", allocation.Fuzzy).
		Int64("box_id", allocation.Box.ID).
		Str("user_id", principal.UserID.String()).
		Msg("vehicle parked")
	return allocation, nil
}

// Release освобождает место машины. Только точное совпадение номера:
// нечеткий поиск здесь мог бы освободить чужое место.
func (s *ParkingService) Release(ctx context.Context, principal model.Principal, rawPlate string) error {
	if !principal.CanOperateYard() {
		return ErrPermissionDenied
	}

	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return fmt.Errorf("%w: plate is empty", ErrInvalidInput)
	}

	var releasedBox int64
	err := s.uow.Do(ctx, func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error {
		vehicle, err := vehicles.FindByExactPlate(ctx, plate)
		if err != nil {
			return err
		}
		if vehicle == nil {
			return fmt.Errorf("%w: no such vehicle", ErrNotFound)
		}

		box, err := vehicles.FindActiveBox(ctx, vehicle.ID)
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("%w: not parked", ErrNotFound)
		}

		if err := slots.DeleteAssociation(ctx, vehicle.ID, box.ID); err != nil {
			return err
		}
		if err := slots.SetStatus(ctx, box.ID, model.BoxStatusFree); err != nil {
			return err
		}
		releasedBox = box.ID
		return nil
	})
	if err != nil {
		err = translateRegistryError(err)
		s.record("release", err)
		s.log.Info().Err(err).Str("plate", plate).Msg("release rejected")
		return err
	}

	s.record("release", nil)
	s.log.Info().Str("plate", plate).Int64("box_id", releasedBox).
		Str("user_id", principal.UserID.String()).Msg("vehicle released")
	return nil
}

// Location где стоит машина
type Location struct {
	VehicleID uuid.UUID
	Plate     string
	Box       model.Box
}

// Locate ищет место машины по точному номеру; связь машина-место единственный источник ответа
func (s *ParkingService) Locate(ctx context.Context, rawPlate string) (*Location, error) {
	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is empty", ErrInvalidInput)
	}

	var location *Location
	err := s.uow.Do(ctx, func(vehicles ports.VehicleRegistry, _ ports.SlotRegistry) error {
		vehicle, err := vehicles.FindByExactPlate(ctx, plate)
		if err != nil {
			return err
		}
		if vehicle == nil {
			return fmt.Errorf("%w: no such vehicle", ErrNotFound)
		}

		box, err := vehicles.FindActiveBox(ctx, vehicle.ID)
		if err != nil {
			return err
		}
		if box == nil {
			return fmt.Errorf("%w: not parked", ErrNotFound)
		}

		location = &Location{VehicleID: vehicle.ID, Plate: vehicle.PlateNumber, Box: *box}
		return nil
	})
	s.record("locate", err)
	if err != nil {
		return nil, err
	}
	return location, nil
}

// ListSlots все места двора по возрастанию id
func (s *ParkingService) ListSlots(ctx context.Context) ([]model.Box, error) {
	var boxes []model.Box
	err := s.uow.Do(ctx, func(_ ports.VehicleRegistry, slots ports.SlotRegistry) error {
		var err error
		boxes, err = slots.ListBoxes(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

func (s *ParkingService) resolveVehicle(ctx context.Context, vehicles ports.VehicleRegistry, plate string) (*model.Vehicle, bool, error) {
	vehicle, err := vehicles.FindByExactPlate(ctx, plate)
	if err != nil || vehicle != nil {
		return vehicle, false, err
	}

	stored, err := vehicles.ListPlates(ctx)
	if err != nil {
		return nil, false, err
	}

	// сопоставляем по нормализованной форме, а машину ищем по номеру в том виде, как он сохранен.
	// ListPlates упорядочен, поэтому при совпадении нормализованных форм побеждает первый номер
	byNormalized := make(map[string]string, len(stored))
	corpus := make([]string, 0, len(stored))
	for _, p := range stored {
		normalized := utils.NormalizePlate(p)
		if normalized == "" {
			continue
		}
		if _, seen := byNormalized[normalized]; seen {
			continue
		}
		byNormalized[normalized] = p
		corpus = append(corpus, normalized)
	}

	match, ok := utils.BestMatch(corpus, plate, s.maxPlateDistance)
	if !ok {
		return nil, false, nil
	}

	vehicle, err = vehicles.FindByExactPlate(ctx, byNormalized[match])
	if err != nil {
		return nil, false, err
	}
	return vehicle, vehicle != nil, nil
}

func (s *ParkingService) record(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrInvalidInput):
		result = "invalid"
	case errors.Is(err, ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.ParkingOperations.WithLabelValues(operation, result).Inc()
}

// translateRegistryError нарушение уникальности означает, что параллельный запрос успел первым
func translateRegistryError(err error) error {
	if errors.Is(err, ports.ErrDuplicate) {
		return fmt.Errorf("%w: vehicle or slot was taken concurrently", ErrConflict)
	}
	return err
}
