package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/core/domain"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProvider_LoadItems(t *testing.T) {
	path := writeCatalog(t, `
items:
  - id: 10000
    name: Starter Pack
    prevent_duplicate_purchase: true
    rewards:
      - kind: 0
        id: 5
        value: 1
  - id: 10001
    name: Gem Pouch
    purchase_limit: 3
    rewards: []
`)

	items, err := NewProvider(path).LoadItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	starter := items[10000]
	assert.Equal(t, "Starter Pack", starter.Name)
	assert.True(t, starter.PreventDuplicatePurchase)
	assert.Equal(t, []domain.Reward{{Kind: domain.RewardCurrency, ID: 5, Value: 1}}, starter.Rewards)

	pouch := items[10001]
	assert.Equal(t, 3, pouch.PurchaseLimit)
	assert.Empty(t, pouch.Rewards)
}

func TestProvider_LoadItems_MissingFile(t *testing.T) {
	_, err := NewProvider(filepath.Join(t.TempDir(), "nope.yaml")).LoadItems(context.Background())
	assert.Error(t, err)
}

func TestProvider_LoadItems_InvalidYAML(t *testing.T) {
	path := writeCatalog(t, "items: [not, closed")
	_, err := NewProvider(path).LoadItems(context.Background())
	assert.Error(t, err)
}

func TestProvider_LoadItems_RejectsBadIDs(t *testing.T) {
	dup := writeCatalog(t, `
items:
  - id: 10000
    name: A
  - id: 10000
    name: B
`)
	_, err := NewProvider(dup).LoadItems(context.Background())
	assert.ErrorContains(t, err, "appears twice")

	nonPositive := writeCatalog(t, `
items:
  - id: 0
    name: Zero
`)
	_, err = NewProvider(nonPositive).LoadItems(context.Background())
	assert.ErrorContains(t, err, "non-positive id")
}
