package snapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
)

func testRecord(whole int64) Record {
	return Record{
		TakenAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WholePrice: decimal.NewFromInt(whole),
		CashTotal:  decimal.NewFromInt(100),
		BondTotal:  decimal.NewFromInt(500),
	}
}

func TestWALStoreSaveAndReadBack(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer func() { assert.NoError(t, store.Close()) }()

	require.NoError(t, store.Save(testRecord(1000)))
	require.NoError(t, store.Save(testRecord(1100)))

	records, err := store.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].Record.WholePrice.Equal(decimal.NewFromInt(1000)))
	assert.True(t, records[1].Record.WholePrice.Equal(decimal.NewFromInt(1100)))
	assert.NotEmpty(t, records[0].Record.ID, "an ID must be assigned on save")
	assert.Less(t, records[0].Index, records[1].Index)
}

func TestWALStoreRecordsAfterSkipsOlder(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer func() { assert.NoError(t, store.Close()) }()

	require.NoError(t, store.Save(testRecord(1000)))
	first := store.CurrentIndex()
	require.NoError(t, store.Save(testRecord(2000)))

	records, err := store.RecordsAfter(first)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Record.WholePrice.Equal(decimal.NewFromInt(2000)))

	records, err = store.RecordsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(testRecord(1000)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer func() { assert.NoError(t, reopened.Close()) }()

	records, err := reopened.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Record.WholePrice.Equal(decimal.NewFromInt(1000)))
}

func TestRecordFromSnapshot(t *testing.T) {
	snap := &domain.Snapshot{
		WholePrice: decimal.NewFromInt(5000),
		CashTotal:  decimal.NewFromInt(200),
		TakenAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	snap.Bonds.TotalPrice = decimal.NewFromInt(3000)
	snap.Shares.TotalPrice = decimal.NewFromInt(1500)
	snap.Funds.TotalPrice = decimal.NewFromInt(300)

	record := RecordFromSnapshot(snap)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, snap.TakenAt, record.TakenAt)
	assert.True(t, record.WholePrice.Equal(decimal.NewFromInt(5000)))
	assert.True(t, record.BondTotal.Equal(decimal.NewFromInt(3000)))
	assert.True(t, record.ShareTotal.Equal(decimal.NewFromInt(1500)))
	assert.True(t, record.FundTotal.Equal(decimal.NewFromInt(300)))
}
