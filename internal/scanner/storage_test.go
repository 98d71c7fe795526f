package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Aidin1998/arbcore/pkg/models"
)

func testStore(t *testing.T) *GormObservationStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store, err := NewGormObservationStore(db)
	require.NoError(t, err)
	return store
}

func TestObservationRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	obs := &models.SpreadObservation{
		Instrument: "BTC-USD",
		BuyVenue:   "alpha",
		SellVenue:  "beta",
		BuyPrice:   decimal.NewFromInt(101),
		SellPrice:  decimal.NewFromInt(103),
		SpreadBps:  decimal.NewFromInt(198),
		NetBps:     decimal.NewFromInt(194),
		Emitted:    true,
		ObservedAt: now,
	}
	require.NoError(t, store.SaveObservation(ctx, obs))

	got, err := store.RecentObservations(ctx, "BTC-USD", now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alpha", got[0].BuyVenue)
	assert.True(t, got[0].Emitted)
}

func TestRecentObservationsFilters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, instrument := range []string{"BTC-USD", "ETH-USD", "BTC-USD"} {
		require.NoError(t, store.SaveObservation(ctx, &models.SpreadObservation{
			Instrument: instrument,
			ObservedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	// Older than the cutoff.
	require.NoError(t, store.SaveObservation(ctx, &models.SpreadObservation{
		Instrument: "BTC-USD",
		ObservedAt: now.Add(-time.Hour),
	}))

	got, err := store.RecentObservations(ctx, "BTC-USD", now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := store.RecentObservations(ctx, "", now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
