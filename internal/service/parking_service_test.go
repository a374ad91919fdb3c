package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"yard-service/internal/model"
	"yard-service/internal/ports"
	"yard-service/internal/repository/memory"
)

var operator = model.Principal{UserID: uuid.New(), Role: model.UserRoleOperator}

type ParkingServiceSuite struct {
	suite.Suite
	ctx      context.Context
	registry *memory.Registry
	service  *ParkingService
	b1       model.Box
}

func (s *ParkingServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = memory.NewRegistry()
	_, err := s.registry.AddVehicle("ABC1D23")
	s.Require().NoError(err)
	_, err = s.registry.AddVehicle("XYZ9K88")
	s.Require().NoError(err)
	s.b1 = s.registry.AddBox("B1")
	s.service = NewParkingService(s.registry, 1, zerolog.Nop())
}

func (s *ParkingServiceSuite) TestAllocateThenAlreadyParked() {
	allocation, err := s.service.Allocate(s.ctx, operator, "abc1d23")
	s.Require().NoError(err)
	s.Equal("B1", allocation.Box.Name)
	s.Equal(model.BoxStatusOccupied, allocation.Box.Status)
	s.Equal("ABC1D23", allocation.Plate)
	s.False(allocation.Fuzzy)

	box, _ := s.registry.Box(s.b1.ID)
	s.Equal(model.BoxStatusOccupied, box.Status)

	_, err = s.service.Allocate(s.ctx, operator, "abc1d23")
	s.ErrorIs(err, ErrInvalidInput)
	s.Contains(err.Error(), "already parked")
}

func (s *ParkingServiceSuite) TestReleaseThenNotParked() {
	_, err := s.service.Allocate(s.ctx, operator, "abc1d23")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Release(s.ctx, operator, "abc1d23"))
	box, _ := s.registry.Box(s.b1.ID)
	s.Equal(model.BoxStatusFree, box.Status)

	err = s.service.Release(s.ctx, operator, "abc1d23")
	s.ErrorIs(err, ErrNotFound)
	s.Contains(err.Error(), "not parked")
}

func (s *ParkingServiceSuite) TestAllocateFuzzyMatch() {
	allocation, err := s.service.Allocate(s.ctx, operator, "ABC1D28")
	s.Require().NoError(err)
	s.Equal("ABC1D23", allocation.Plate)
	s.True(allocation.Fuzzy)
}

func (s *ParkingServiceSuite) TestAllocateUnknownVehicle() {
	_, err := s.service.Allocate(s.ctx, operator, "QWE0R00")
	s.ErrorIs(err, ErrNotFound)
	s.Contains(err.Error(), "no such vehicle")
}

func (s *ParkingServiceSuite) TestAllocateEmptyPlate() {
	_, err := s.service.Allocate(s.ctx, operator, " -- ")
	s.ErrorIs(err, ErrInvalidInput)

	err = s.service.Release(s.ctx, operator, "")
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *ParkingServiceSuite) TestAllocateNoFreeSlot() {
	_, err := s.service.Allocate(s.ctx, operator, "ABC1D23")
	s.Require().NoError(err)

	_, err = s.service.Allocate(s.ctx, operator, "XYZ9K88")
	s.ErrorIs(err, ErrNotFound)
	s.Contains(err.Error(), "no free slot")
}

func (s *ParkingServiceSuite) TestReleaseDoesNotUseFuzzyMatch() {
	_, err := s.service.Allocate(s.ctx, operator, "ABC1D23")
	s.Require().NoError(err)

	err = s.service.Release(s.ctx, operator, "ABC1D28")
	s.ErrorIs(err, ErrNotFound)
	s.Contains(err.Error(), "no such vehicle")

	box, _ := s.registry.Box(s.b1.ID)
	s.Equal(model.BoxStatusOccupied, box.Status)
}

func (s *ParkingServiceSuite) TestViewerCannotOperate() {
	viewer := model.Principal{UserID: uuid.New(), Role: model.UserRoleViewer}

	_, err := s.service.Allocate(s.ctx, viewer, "ABC1D23")
	s.ErrorIs(err, ErrPermissionDenied)
	s.ErrorIs(s.service.Release(s.ctx, viewer, "ABC1D23"), ErrPermissionDenied)
}

func (s *ParkingServiceSuite) TestLocate() {
	_, err := s.service.Locate(s.ctx, "abc1d23")
	s.ErrorIs(err, ErrNotFound)
	s.Contains(err.Error(), "not parked")

	allocation, err := s.service.Allocate(s.ctx, operator, "ABC1D23")
	s.Require().NoError(err)

	location, err := s.service.Locate(s.ctx, "abc-1d23")
	s.Require().NoError(err)
	s.Equal(allocation.VehicleID, location.VehicleID)
	s.Equal("ABC1D23", location.Plate)
	s.Equal(s.b1.ID, location.Box.ID)
	s.Equal(model.BoxStatusOccupied, location.Box.Status)

	// поиск места только по точному номеру
	_, err = s.service.Locate(s.ctx, "ABC1D24")
	s.ErrorIs(err, ErrNotFound)
	s.Contains(err.Error(), "no such vehicle")

	_, err = s.service.Locate(s.ctx, "  ")
	s.ErrorIs(err, ErrInvalidInput)

	s.Require().NoError(s.service.Release(s.ctx, operator, "ABC1D23"))
	_, err = s.service.Locate(s.ctx, "ABC1D23")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ParkingServiceSuite) TestListSlots() {
	b2 := s.registry.AddBox("B2")

	_, err := s.service.Allocate(s.ctx, operator, "XYZ9K88")
	s.Require().NoError(err)

	boxes, err := s.service.ListSlots(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(boxes, 2)
	s.Equal(s.b1.ID, boxes[0].ID)
	s.Equal(model.BoxStatusOccupied, boxes[0].Status)
	s.Equal(b2.ID, boxes[1].ID)
	s.Equal(model.BoxStatusFree, boxes[1].Status)
}

func TestParkingServiceSuite(t *testing.T) {
	suite.Run(t, new(ParkingServiceSuite))
}

func TestAllocateConcurrentSingleSlot(t *testing.T) {
	for round := 0; round < 50; round++ {
		registry := memory.NewRegistry()
		_, err := registry.AddVehicle("ABC1D23")
		require.NoError(t, err)
		_, err = registry.AddVehicle("XYZ9K88")
		require.NoError(t, err)
		registry.AddBox("B1")
		svc := NewParkingService(registry, 1, zerolog.Nop())

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, plate := range []string{"ABC1D23", "XYZ9K88"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.Allocate(context.Background(), operator, plate)
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Contains(t, err.Error(), "no free slot")
		}
		assert.Equal(t, 1, succeeded)
	}
}

func TestAllocateConcurrentManySlots(t *testing.T) {
	registry := memory.NewRegistry()
	const vehicles, slots = 20, 7
	plates := make([]string, vehicles)
	for i := range plates {
		plates[i] = fmt.Sprintf("AAA%dB%02d", i%10, i)
		_, err := registry.AddVehicle(plates[i])
		require.NoError(t, err)
	}
	for i := 0; i < slots; i++ {
		registry.AddBox(fmt.Sprintf("B%d", i+1))
	}
	// допуск 0: соседние номера не должны склеиваться
	svc := NewParkingService(registry, 0, zerolog.Nop())

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := make(map[int64]string)
	for _, plate := range plates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allocation, err := svc.Allocate(context.Background(), operator, plate)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			_, dup := taken[allocation.Box.ID]
			assert.False(t, dup, "box %d allocated twice", allocation.Box.ID)
			taken[allocation.Box.ID] = plate
		}()
	}
	wg.Wait()

	assert.Len(t, taken, slots)
}

// failingSlots подменяет CreateAssociation, чтобы проверить откат смены статуса
type failingSlots struct {
	ports.SlotRegistry
}

func (f failingSlots) CreateAssociation(context.Context, uuid.UUID, int64) error {
	return ports.ErrDuplicate
}

type failingUnitOfWork struct {
	inner ports.ParkingUnitOfWork
}

func (u failingUnitOfWork) Do(ctx context.Context, fn func(ports.VehicleRegistry, ports.SlotRegistry) error) error {
	return u.inner.Do(ctx, func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error {
		return fn(vehicles, failingSlots{SlotRegistry: slots})
	})
}

func TestAllocateRollsBackOnAssociationConflict(t *testing.T) {
	registry := memory.NewRegistry()
	_, err := registry.AddVehicle("ABC1D23")
	require.NoError(t, err)
	box := registry.AddBox("B1")

	svc := NewParkingService(failingUnitOfWork{inner: registry}, 1, zerolog.Nop())
	_, err = svc.Allocate(context.Background(), operator, "ABC1D23")
	require.ErrorIs(t, err, ErrConflict)

	stored, _ := registry.Box(box.ID)
	assert.Equal(t, model.BoxStatusFree, stored.Status)
}
