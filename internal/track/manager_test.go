package track

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate-service/internal/domain/toll"
)

func det(x1, y1, x2, y2 float64) toll.Detection {
	return toll.Detection{Box: toll.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Confidence: 0.9}
}

func newTestManager(cfg Config) *Manager {
	return NewManager(cfg, zerolog.Nop())
}

func TestManagerConfirmsAfterMinHits(t *testing.T) {
	m := newTestManager(DefaultConfig())

	// Frames 1 and 2: track exists but is still tentative.
	for i := 0; i < 2; i++ {
		confirmed, err := m.Update([]toll.Detection{det(0, 0, 20, 10)})
		require.NoError(t, err)
		assert.Empty(t, confirmed)
		assert.Equal(t, 1, m.Len())
	}

	// Frame 3: third consecutive hit promotes it.
	confirmed, err := m.Update([]toll.Detection{det(1, 0, 21, 10)})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, StateConfirmed, confirmed[0].State)
	assert.Equal(t, int64(1), confirmed[0].ID)
}

func TestManagerMissedFrameResetsTentativeStreak(t *testing.T) {
	m := newTestManager(DefaultConfig())

	m.Update([]toll.Detection{det(0, 0, 20, 10)})
	m.Update([]toll.Detection{det(0, 0, 20, 10)})
	m.Update(nil) // miss breaks the streak

	// Two more hits are not enough; the streak starts over.
	confirmed, _ := m.Update([]toll.Detection{det(0, 0, 20, 10)})
	assert.Empty(t, confirmed)
	confirmed, _ = m.Update([]toll.Detection{det(0, 0, 20, 10)})
	assert.Empty(t, confirmed)
	confirmed, _ = m.Update([]toll.Detection{det(0, 0, 20, 10)})
	require.Len(t, confirmed, 1)
}

func TestManagerConfirmedSurvivesMisses(t *testing.T) {
	m := newTestManager(DefaultConfig())

	for i := 0; i < 3; i++ {
		m.Update([]toll.Detection{det(0, 0, 20, 10)})
	}

	// Coast under MaxAge, then reappear: same identity, still confirmed.
	for i := 0; i < 5; i++ {
		confirmed, err := m.Update(nil)
		require.NoError(t, err)
		assert.Empty(t, confirmed, "coasting tracks are not reported")
		assert.Equal(t, 1, m.Len())
	}

	confirmed, err := m.Update([]toll.Detection{det(0, 0, 20, 10)})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, int64(1), confirmed[0].ID)
}

func TestManagerDeletesAfterMaxAge(t *testing.T) {
	cfg := DefaultConfig()
	m := newTestManager(cfg)

	for i := 0; i < 3; i++ {
		m.Update([]toll.Detection{det(0, 0, 20, 10)})
	}
	require.Equal(t, 1, m.Len())

	// MaxAge empty frames leave the track alive; one more deletes it.
	for i := 0; i < cfg.MaxAge; i++ {
		m.Update(nil)
	}
	assert.Equal(t, 1, m.Len())
	m.Update(nil)
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Get(1))
}

func TestManagerIDsNeverReused(t *testing.T) {
	m := newTestManager(Config{IoUThreshold: 0.3, MinHits: 1, MaxAge: 0})

	confirmed, _ := m.Update([]toll.Detection{det(0, 0, 20, 10)})
	require.Len(t, confirmed, 1)
	first := confirmed[0].ID

	// Let it die, then present a detection in the same place.
	m.Update(nil)
	require.Equal(t, 0, m.Len())

	confirmed, _ = m.Update([]toll.Detection{det(0, 0, 20, 10)})
	require.Len(t, confirmed, 1)
	assert.Greater(t, confirmed[0].ID, first)
}

func TestManagerTracksTwoVehicles(t *testing.T) {
	m := newTestManager(DefaultConfig())

	// Two plates moving in opposite x directions.
	for i := 0; i < 4; i++ {
		dx := float64(i * 3)
		m.Update([]toll.Detection{
			det(0+dx, 0, 20+dx, 10),
			det(200-dx, 50, 220-dx, 60),
		})
	}

	confirmed, err := m.Update([]toll.Detection{
		det(12, 0, 32, 10),
		det(188, 50, 208, 60),
	})
	require.NoError(t, err)
	require.Len(t, confirmed, 2)
	assert.Equal(t, int64(1), confirmed[0].ID)
	assert.Equal(t, int64(2), confirmed[1].ID)

	// Identities stayed with their trajectories.
	assert.Less(t, confirmed[0].Box().X1, 100.0)
	assert.Greater(t, confirmed[1].Box().X1, 100.0)
}

func TestManagerLowOverlapSpawnsNewTrack(t *testing.T) {
	m := newTestManager(DefaultConfig())

	m.Update([]toll.Detection{det(0, 0, 20, 10)})
	// Far away detection must not be matched to the existing track.
	m.Update([]toll.Detection{det(500, 500, 520, 510)})

	assert.Equal(t, 2, m.Len())
}

func TestManagerDegenerateInputCoasts(t *testing.T) {
	m := newTestManager(DefaultConfig())
	for i := 0; i < 3; i++ {
		m.Update([]toll.Detection{det(0, 0, 20, 10)})
	}

	bad := []toll.Detection{{Box: toll.Box{X1: 10, Y1: 10, X2: 5, Y2: 5}, Confidence: 0.9}}
	confirmed, err := m.Update(bad)
	assert.ErrorIs(t, err, ErrAssociationDegenerate)
	assert.Empty(t, confirmed)
	// Track survived the bad frame.
	assert.Equal(t, 1, m.Len())

	confirmed, err = m.Update([]toll.Detection{det(0, 0, 20, 10)})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
}

func TestManagerConfidenceOutOfRangeIsDegenerate(t *testing.T) {
	m := newTestManager(DefaultConfig())

	_, err := m.Update([]toll.Detection{{Box: toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, Confidence: 1.5}})
	assert.ErrorIs(t, err, ErrAssociationDegenerate)
	assert.Equal(t, 0, m.Len())
}

func TestObserveTextMonotonic(t *testing.T) {
	tr := &Track{}

	assert.True(t, tr.ObserveText("BA 12 PA 3456", 0.6))
	assert.False(t, tr.ObserveText("XX 99 YY 0000", 0.6), "equal confidence does not replace")
	assert.False(t, tr.ObserveText("XX 99 YY 0000", 0.4))
	assert.Equal(t, "BA 12 PA 3456", tr.BestText)

	assert.True(t, tr.ObserveText("BA 12 PA 3457", 0.8))
	assert.Equal(t, "BA 12 PA 3457", tr.BestText)
	assert.InDelta(t, 0.8, tr.BestConfidence, 1e-9)

	assert.False(t, tr.ObserveText("", 0.99), "empty text never stored")
}

func TestAssociateRejectsBelowThreshold(t *testing.T) {
	predicted := []toll.Box{{X1: 0, Y1: 0, X2: 10, Y2: 10}}
	dets := []toll.Detection{det(9, 0, 19, 10)} // IoU = 1/19 < 0.3

	matches, unmatchedTracks, unmatchedDets := associate(predicted, dets, 0.3)
	assert.Empty(t, matches)
	assert.Equal(t, []int{0}, unmatchedTracks)
	assert.Equal(t, []int{0}, unmatchedDets)
}

func TestAssociatePrefersGlobalOptimum(t *testing.T) {
	// Track 0 overlaps both detections; detection 1 is its perfect match,
	// which leaves detection 0 for track 1. The solver must find that split.
	predicted := []toll.Box{
		{X1: 0, Y1: 0, X2: 10, Y2: 10},
		{X1: 4, Y1: 0, X2: 14, Y2: 10},
	}
	dets := []toll.Detection{
		det(2, 0, 12, 10),
		det(0, 0, 10, 10),
	}

	matches, unmatchedTracks, unmatchedDets := associate(predicted, dets, 0.1)
	require.Len(t, matches, 2)
	assert.Empty(t, unmatchedTracks)
	assert.Empty(t, unmatchedDets)

	byTrack := map[int]int{}
	for _, m := range matches {
		byTrack[m.TrackIdx] = m.DetIdx
	}
	assert.Equal(t, 1, byTrack[0])
	assert.Equal(t, 0, byTrack[1])
}
