package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpr-capture-service/internal/domain/lpr"
)

func newBackfillFixture(store *fakeStore, platform *fakePlatform, clock Clock) *BackfillRunner {
	p := newTestPipeline(store, false)
	p.SetRegistry(LPRCameras(platform.Cameras()))
	return NewBackfillRunner(platform, p, store, clock, zerolog.Nop())
}

func TestBackfillBoundsToWindow(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	early := plateEvent("early", "cam-lpr-1", vehicleThumb("AAA111", 90))
	early.Start = t0.Add(-time.Minute)
	inside := plateEvent("inside", "cam-lpr-1", vehicleThumb("BBB222", 90))
	inside.Start = t0.Add(30 * time.Minute)
	late := plateEvent("late", "cam-lpr-1", vehicleThumb("CCC333", 90))
	late.Start = t0.Add(2 * time.Hour)

	platform := &fakePlatform{
		cameras: []lpr.Camera{lprCamera("cam-lpr-1", "LPR Left")},
		batches: [][]lpr.DetectionEvent{{early, inside, late}},
	}
	store := newFakeStore()
	runner := newBackfillFixture(store, platform, newFakeClock(t0))

	stats, err := runner.Backfill(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, store.count())
	assert.NotNil(t, store.get("inside"))
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, lpr.OriginBackfill, store.get("inside").Origin)
}

func TestBackfillIsIdempotent(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ev := plateEvent("e1", "cam-lpr-1", vehicleThumb("ABC123", 90))
	ev.Start = t0.Add(time.Minute)

	platform := &fakePlatform{
		cameras: []lpr.Camera{lprCamera("cam-lpr-1", "LPR Left")},
		batches: [][]lpr.DetectionEvent{{ev}, {ev}},
	}
	store := newFakeStore()
	runner := newBackfillFixture(store, platform, newFakeClock(t0))

	_, err := runner.Backfill(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = runner.Backfill(context.Background(), t0, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, store.count())
}

func TestCatchUpSkipsEmptyStore(t *testing.T) {
	platform := &fakePlatform{cameras: []lpr.Camera{lprCamera("cam-lpr-1", "LPR Left")}}
	store := newFakeStore()
	runner := newBackfillFixture(store, platform, newFakeClock(time.Now().UTC()))

	stats, err := runner.CatchUp(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Zero(t, stats)
	assert.Empty(t, platform.fetchSince, "no fetch without an anchor")
}

func TestCatchUpSkipsSmallGap(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.records["prev"] = &lpr.PlateDetectionRecord{EventID: "prev", Timestamp: t0.Add(-30 * time.Second)}

	platform := &fakePlatform{cameras: []lpr.Camera{lprCamera("cam-lpr-1", "LPR Left")}}
	runner := newBackfillFixture(store, platform, newFakeClock(t0))

	_, err := runner.CatchUp(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, platform.fetchSince)
}

func TestCatchUpReplaysGap(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	anchor := t0.Add(-10 * time.Minute)

	store := newFakeStore()
	store.records["prev"] = &lpr.PlateDetectionRecord{EventID: "prev", Timestamp: anchor}

	missed := plateEvent("missed", "cam-lpr-1", vehicleThumb("ABC123", 90))
	missed.Start = t0.Add(-5 * time.Minute)

	platform := &fakePlatform{
		cameras: []lpr.Camera{lprCamera("cam-lpr-1", "LPR Left")},
		batches: [][]lpr.DetectionEvent{{missed}},
	}
	runner := newBackfillFixture(store, platform, newFakeClock(t0))

	stats, err := runner.CatchUp(context.Background(), time.Minute)
	require.NoError(t, err)

	require.Len(t, platform.fetchSince, 1)
	assert.Equal(t, anchor, platform.fetchSince[0])
	assert.Equal(t, 1, stats.Stored)
	assert.NotNil(t, store.get("missed"))
}
