package repositories

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeEngine/internal/models"
)

func storeTrade(symbol string) models.Trade {
	return models.Trade{
		TradeID:   "t-" + symbol,
		Symbol:    symbol,
		Direction: models.DirectionLong,
		Quantity:  50,
		EntryRules: []models.Rule{
			{PrimarySource: "price", Condition: models.ConditionGTE, Value: 220},
		},
		InitialStopRules: []models.Rule{
			{PrimarySource: "price", Condition: models.ConditionLTE, Value: 200},
		},
		OrderStatus: models.OrderStatusDraft,
		OrderType:   models.OrderTypeMarket,
		TimeInForce: models.TimeInForceDay,
	}
}

func newStore(t *testing.T) (*TradeStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.json")
	return NewTradeStore(path), path
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.SaveAll([]models.Trade{storeTrade("AAPL"), storeTrade("MSFT")}))

	trades, err := store.Load()
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "AAPL", trades[0].Symbol)

	trade, err := store.FindBySymbol("MSFT")
	require.NoError(t, err)
	assert.Equal(t, "t-MSFT", trade.TradeID)
}

func TestStoreMissingFileIsEmpty(t *testing.T) {
	store, _ := newStore(t)
	trades, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestStoreFindUnknownSymbol(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.SaveAll([]models.Trade{storeTrade("AAPL")}))

	_, err := store.FindBySymbol("TSLA")
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestStoreUpdateRereadsAuthoritativeRecord(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.SaveAll([]models.Trade{storeTrade("AAPL")}))

	// Simulate an external writer bumping quantity on disk.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []models.Trade
	require.NoError(t, json.Unmarshal(data, &onDisk))
	onDisk[0].Quantity = 75
	raw, err := json.Marshal(onDisk)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	updated, err := store.Update("AAPL", func(tr *models.Trade) error {
		tr.FilledQty = tr.Quantity
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 75, updated.FilledQty)
}

func TestStoreUpdateMutateErrorLeavesFileUntouched(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.SaveAll([]models.Trade{storeTrade("AAPL")}))

	_, err := store.Update("AAPL", func(tr *models.Trade) error {
		tr.Quantity = 999
		return assert.AnError
	})
	require.Error(t, err)

	trade, err := store.FindBySymbol("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 50, trade.Quantity)
}

func TestStoreRejectsInvalidRecords(t *testing.T) {
	store, path := newStore(t)

	bad := storeTrade("AAPL")
	bad.Direction = "Sideways"
	raw, err := json.Marshal([]models.Trade{bad})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "direction must be Long or Short")
}

func TestStoreDefaultsBlankOrderStatusToDraft(t *testing.T) {
	store, path := newStore(t)

	fresh := storeTrade("AAPL")
	fresh.OrderStatus = ""
	raw, err := json.Marshal([]models.Trade{fresh})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	trades, err := store.Load()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, models.OrderStatusDraft, trades[0].OrderStatus)
}

func TestStoreWriteIsAtomic(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.SaveAll([]models.Trade{storeTrade("AAPL")}))
	require.NoError(t, store.SaveAll([]models.Trade{storeTrade("AAPL"), storeTrade("MSFT")}))

	// No temp files left behind next to the store.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}
