package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/vanir/internal/domain"
	"github.com/dukerupert/vanir/internal/inventory"
)

func TestConfirmInventory(t *testing.T) {
	ctx := context.Background()
	svc := inventory.NewMemoryService(map[string]int64{"variant_1": 3})

	t.Run("sufficient stock", func(t *testing.T) {
		assert.NoError(t, svc.ConfirmInventory(ctx, "variant_1", 3))
	})

	t.Run("insufficient stock", func(t *testing.T) {
		err := svc.ConfirmInventory(ctx, "variant_1", 4)
		assert.True(t, domain.IsCode(err, domain.EINVALID))
	})

	t.Run("untracked variants are unlimited", func(t *testing.T) {
		assert.NoError(t, svc.ConfirmInventory(ctx, "variant_untracked", 1_000_000))
	})
}

func TestAdjustInventory(t *testing.T) {
	ctx := context.Background()
	svc := inventory.NewMemoryService(map[string]int64{"variant_1": 5})

	assert.NoError(t, svc.AdjustInventory(ctx, "variant_1", -2))
	assert.Equal(t, int64(3), svc.Level("variant_1"))

	assert.NoError(t, svc.AdjustInventory(ctx, "variant_1", 2))
	assert.Equal(t, int64(5), svc.Level("variant_1"))

	// Untracked variants stay untracked.
	assert.NoError(t, svc.AdjustInventory(ctx, "variant_untracked", -1))
	assert.NoError(t, svc.ConfirmInventory(ctx, "variant_untracked", 10))
}
