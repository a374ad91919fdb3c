package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"yard-service/internal/model"
	"yard-service/internal/ports"
	"yard-service/internal/utils"
)

var (
	ErrDuplicate      = ports.ErrDuplicate
	ErrDuplicatePlate = errors.New("plate already registered")
	ErrNotFound       = errors.New("record not found")
)

// Registry хранит машины, места и связи в памяти.
// Do держит общий мьютекс на время всей операции, поэтому
// операции парковки выполняются последовательно.
type Registry struct {
	mu         sync.Mutex
	vehicles   map[uuid.UUID]model.Vehicle
	byPlate    map[string]uuid.UUID
	boxes      map[int64]model.Box
	parked     map[uuid.UUID]int64
	occupiedBy map[int64]uuid.UUID
	nextBoxID  int64
}

func NewRegistry() *Registry {
	return &Registry{
		vehicles:   make(map[uuid.UUID]model.Vehicle),
		byPlate:    make(map[string]uuid.UUID),
		boxes:      make(map[int64]model.Box),
		parked:     make(map[uuid.UUID]int64),
		occupiedBy: make(map[int64]uuid.UUID),
		nextBoxID:  1,
	}
}

func (r *Registry) AddVehicle(plate string) (model.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPlate[plate]; exists {
		return model.Vehicle{}, ErrDuplicatePlate
	}
	now := time.Now()
	vehicle := model.Vehicle{ID: uuid.New(), PlateNumber: plate, CreatedAt: now, UpdatedAt: now}
	r.vehicles[vehicle.ID] = vehicle
	r.byPlate[plate] = vehicle.ID
	return vehicle, nil
}

func (r *Registry) AddBox(name string) model.Box {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	box := model.Box{ID: r.nextBoxID, Name: name, Status: model.BoxStatusFree, CreatedAt: now, UpdatedAt: now}
	r.nextBoxID++
	r.boxes[box.ID] = box
	return box
}

// Seed регистрирует машины и места; номера сохраняются в нормализованном виде
func (r *Registry) Seed(plates, boxes []string) error {
	for _, raw := range plates {
		plate := utils.NormalizePlate(raw)
		if plate == "" {
			continue
		}
		if _, err := r.AddVehicle(plate); err != nil {
			return fmt.Errorf("seed vehicle %q: %w", raw, err)
		}
	}
	for _, name := range boxes {
		r.AddBox(name)
	}
	return nil
}

func (r *Registry) Box(id int64) (model.Box, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	box, ok := r.boxes[id]
	return box, ok
}

func (r *Registry) Do(ctx context.Context, fn func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &registryTx{r: r}
	if err := fn(tx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// registryTx работает с картами без блокировки: Do уже держит мьютекс
type registryTx struct {
	r    *Registry
	undo []func()
}

func (t *registryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *registryTx) FindByExactPlate(_ context.Context, plate string) (*model.Vehicle, error) {
	id, ok := t.r.byPlate[plate]
	if !ok {
		return nil, nil
	}
	vehicle := t.r.vehicles[id]
	return &vehicle, nil
}

func (t *registryTx) ListPlates(_ context.Context) ([]string, error) {
	plates := make([]string, 0, len(t.r.byPlate))
	for plate := range t.r.byPlate {
		plates = append(plates, plate)
	}
	sort.Strings(plates)
	return plates, nil
}

func (t *registryTx) FindActiveBox(_ context.Context, vehicleID uuid.UUID) (*model.Box, error) {
	boxID, ok := t.r.parked[vehicleID]
	if !ok {
		return nil, nil
	}
	box := t.r.boxes[boxID]
	return &box, nil
}

func (t *registryTx) ListBoxes(_ context.Context) ([]model.Box, error) {
	boxes := make([]model.Box, 0, len(t.r.boxes))
	for _, box := range t.r.boxes {
		boxes = append(boxes, box)
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].ID < boxes[j].ID })
	return boxes, nil
}

func (t *registryTx) FindFirstFree(ctx context.Context) (*model.Box, error) {
	boxes, _ := t.ListBoxes(ctx)
	for _, box := range boxes {
		if box.IsFree() {
			return &box, nil
		}
	}
	return nil, nil
}

func (t *registryTx) SetStatus(_ context.Context, boxID int64, status model.BoxStatus) error {
	box, ok := t.r.boxes[boxID]
	if !ok {
		return ErrNotFound
	}
	previous := box
	box.Status = status
	box.UpdatedAt = time.Now()
	t.r.boxes[boxID] = box
	t.undo = append(t.undo, func() { t.r.boxes[boxID] = previous })
	return nil
}

func (t *registryTx) CreateAssociation(_ context.Context, vehicleID uuid.UUID, boxID int64) error {
	if _, ok := t.r.vehicles[vehicleID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.r.boxes[boxID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.r.parked[vehicleID]; ok {
		return ErrDuplicate
	}
	if _, ok := t.r.occupiedBy[boxID]; ok {
		return ErrDuplicate
	}
	t.r.parked[vehicleID] = boxID
	t.r.occupiedBy[boxID] = vehicleID
	t.undo = append(t.undo, func() {
		delete(t.r.parked, vehicleID)
		delete(t.r.occupiedBy, boxID)
	})
	return nil
}

func (t *registryTx) DeleteAssociation(_ context.Context, vehicleID uuid.UUID, boxID int64) error {
	current, ok := t.r.parked[vehicleID]
	if !ok || current != boxID {
		return ErrNotFound
	}
	delete(t.r.parked, vehicleID)
	delete(t.r.occupiedBy, boxID)
	t.undo = append(t.undo, func() {
		t.r.parked[vehicleID] = boxID
		t.r.occupiedBy[boxID] = vehicleID
	})
	return nil
}
