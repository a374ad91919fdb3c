package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yard-service/internal/model"
	"yard-service/internal/ports"
)

func TestRegistryDoCommits(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	vehicle, err := reg.AddVehicle("ABC1D23")
	require.NoError(t, err)
	box := reg.AddBox("B1")

	err = reg.Do(ctx, func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error {
		if err := slots.SetStatus(ctx, box.ID, model.BoxStatusOccupied); err != nil {
			return err
		}
		return slots.CreateAssociation(ctx, vehicle.ID, box.ID)
	})
	require.NoError(t, err)

	stored, ok := reg.Box(box.ID)
	require.True(t, ok)
	assert.Equal(t, model.BoxStatusOccupied, stored.Status)

	err = reg.Do(ctx, func(vehicles ports.VehicleRegistry, _ ports.SlotRegistry) error {
		active, err := vehicles.FindActiveBox(ctx, vehicle.ID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, box.ID, active.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestRegistryDoRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	vehicle, err := reg.AddVehicle("ABC1D23")
	require.NoError(t, err)
	box := reg.AddBox("B1")
	boom := errors.New("boom")

	err = reg.Do(ctx, func(_ ports.VehicleRegistry, slots ports.SlotRegistry) error {
		require.NoError(t, slots.SetStatus(ctx, box.ID, model.BoxStatusOccupied))
		require.NoError(t, slots.CreateAssociation(ctx, vehicle.ID, box.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, _ := reg.Box(box.ID)
	assert.Equal(t, model.BoxStatusFree, stored.Status)

	_ = reg.Do(ctx, func(vehicles ports.VehicleRegistry, _ ports.SlotRegistry) error {
		active, err := vehicles.FindActiveBox(ctx, vehicle.ID)
		require.NoError(t, err)
		assert.Nil(t, active)
		return nil
	})
}

func TestRegistryAssociationConstraints(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	first, _ := reg.AddVehicle("ABC1D23")
	second, _ := reg.AddVehicle("XYZ9K88")
	b1 := reg.AddBox("B1")
	b2 := reg.AddBox("B2")

	err := reg.Do(ctx, func(_ ports.VehicleRegistry, slots ports.SlotRegistry) error {
		require.NoError(t, slots.CreateAssociation(ctx, first.ID, b1.ID))
		assert.ErrorIs(t, slots.CreateAssociation(ctx, first.ID, b2.ID), ErrDuplicate)
		assert.ErrorIs(t, slots.CreateAssociation(ctx, second.ID, b1.ID), ErrDuplicate)
		assert.ErrorIs(t, slots.DeleteAssociation(ctx, second.ID, b1.ID), ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	_, err = reg.AddVehicle("ABC1D23")
	assert.ErrorIs(t, err, ErrDuplicatePlate)
}

func TestRegistryFindFirstFreeOrdersByID(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	b1 := reg.AddBox("B1")
	b2 := reg.AddBox("B2")

	_ = reg.Do(ctx, func(_ ports.VehicleRegistry, slots ports.SlotRegistry) error {
		free, err := slots.FindFirstFree(ctx)
		require.NoError(t, err)
		require.NotNil(t, free)
		assert.Equal(t, b1.ID, free.ID)

		require.NoError(t, slots.SetStatus(ctx, b1.ID, model.BoxStatusOccupied))
		free, err = slots.FindFirstFree(ctx)
		require.NoError(t, err)
		require.NotNil(t, free)
		assert.Equal(t, b2.ID, free.ID)

		require.NoError(t, slots.SetStatus(ctx, b2.ID, model.BoxStatusOccupied))
		free, err = slots.FindFirstFree(ctx)
		require.NoError(t, err)
		assert.Nil(t, free)
		return nil
	})
}

func TestRegistrySeed(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	require.NoError(t, reg.Seed([]string{"abc-1d23", "xyz9k88", "--"}, []string{"B1", "B2"}))

	_ = reg.Do(ctx, func(vehicles ports.VehicleRegistry, slots ports.SlotRegistry) error {
		plates, err := vehicles.ListPlates(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ABC1D23", "XYZ9K88"}, plates)

		boxes, err := slots.ListBoxes(ctx)
		require.NoError(t, err)
		require.Len(t, boxes, 2)
		assert.Equal(t, "B1", boxes[0].Name)
		return nil
	})

	assert.ErrorIs(t, reg.Seed([]string{"ABC1D23"}, nil), ErrDuplicatePlate)
}
