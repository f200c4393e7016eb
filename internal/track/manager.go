package track

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"tollgate-service/internal/domain/toll"
)

// ErrAssociationDegenerate reports a malformed detection set (invalid box or
// confidence outside [0, 1]). The frame is skipped and live tracks coast.
var ErrAssociationDegenerate = errors.New("degenerate association input")

// State is the lifecycle state of a track.
type State string

const (
	StateTentative State = "tentative"
	StateConfirmed State = "confirmed"
	StateLost      State = "lost"
)

// Track is a persistent identity hypothesis for one plate across frames.
// It carries both the kinematic estimate and the accumulated OCR evidence.
type Track struct {
	ID    int64
	State State

	// Lifecycle counters.
	Hits            int // consecutive successful associations
	Age             int // frames since creation
	TimeSinceUpdate int // frames since the last successful association

	// OCR evidence, owned by the text consolidator policy.
	BestText       string
	BestConfidence float64
	LastOCRFrame   int

	filter *boxFilter
}

// Box returns the current estimated bounding box.
func (t *Track) Box() toll.Box { return t.filter.stateBox() }

// ObserveText applies the monotonic best-of policy: the stored canonical text
// is replaced only by a strictly more confident validated reading.
func (t *Track) ObserveText(text string, confidence float64) bool {
	if text == "" || confidence <= t.BestConfidence {
		return false
	}
	t.BestText = text
	t.BestConfidence = confidence
	return true
}

// Config holds the tracker lifecycle parameters.
type Config struct {
	IoUThreshold float64 // minimum overlap for a valid match
	MinHits      int     // consecutive hits before Tentative → Confirmed
	MaxAge       int     // frames without an update before deletion
}

// DefaultConfig returns the production tracker parameters.
func DefaultConfig() Config {
	return Config{
		IoUThreshold: 0.3,
		MinHits:      3,
		MaxAge:       10,
	}
}

// Manager owns the track set for one camera stream and runs the per-frame
// predict → associate → update/create/delete cycle. It is not safe for
// concurrent use; each stream owns exactly one Manager.
type Manager struct {
	cfg    Config
	tracks []*Track // ordered by creation, ids strictly increasing
	nextID int64
	log    zerolog.Logger
}

// NewManager creates a Manager with the given configuration.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	if cfg.MinHits < 1 {
		cfg.MinHits = 1
	}
	return &Manager{
		cfg:    cfg,
		nextID: 1,
		log:    log.With().Str("component", "tracker").Logger(),
	}
}

// Update advances every track one frame, associates the given detections and
// applies the lifecycle transitions. It returns the confirmed tracks in id
// order. On degenerate input it returns ErrAssociationDegenerate; the tracks
// coast for that frame and detections are discarded.
func (m *Manager) Update(dets []toll.Detection) ([]*Track, error) {
	degenerate := false
	for _, d := range dets {
		if !d.Box.Valid() || d.Confidence < 0 || d.Confidence > 1 {
			degenerate = true
			break
		}
	}
	if degenerate {
		m.log.Warn().Int("detections", len(dets)).Msg("degenerate detection set, coasting tracks")
		dets = nil
	}

	// Predict every live track one step forward; ageing happens here so that
	// an unmatched track is pure coasting.
	predicted := make([]toll.Box, len(m.tracks))
	for i, t := range m.tracks {
		predicted[i] = t.filter.predict()
		t.Age++
		t.TimeSinceUpdate++
	}

	matches, _, unmatchedDets := associate(predicted, dets, m.cfg.IoUThreshold)

	for _, match := range matches {
		t := m.tracks[match.TrackIdx]
		t.filter.update(dets[match.DetIdx].Box)
		t.Hits++
		t.TimeSinceUpdate = 0
		if t.State == StateTentative && t.Hits >= m.cfg.MinHits {
			t.State = StateConfirmed
			m.log.Debug().Int64("track_id", t.ID).Msg("track confirmed")
		}
	}

	// A missed frame breaks the consecutive-hit streak of a tentative track.
	for _, t := range m.tracks {
		if t.TimeSinceUpdate > 0 && t.State == StateTentative {
			t.Hits = 0
		}
	}

	// Fresh tracks for detections nothing claimed, in input order so that ids
	// are deterministic for a given detection sequence.
	for _, j := range unmatchedDets {
		t := &Track{
			ID:     m.nextID,
			State:  StateTentative,
			Hits:   1,
			filter: newBoxFilter(dets[j].Box),
		}
		if t.Hits >= m.cfg.MinHits {
			t.State = StateConfirmed
		}
		m.nextID++
		m.tracks = append(m.tracks, t)
	}

	// Expire tracks that coasted past MaxAge.
	live := m.tracks[:0]
	for _, t := range m.tracks {
		if t.TimeSinceUpdate > m.cfg.MaxAge {
			t.State = StateLost
			m.log.Debug().Int64("track_id", t.ID).Int("age", t.Age).Msg("track deleted")
			continue
		}
		live = append(live, t)
	}
	m.tracks = live

	confirmed := make([]*Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		if t.State == StateConfirmed && t.TimeSinceUpdate == 0 {
			confirmed = append(confirmed, t)
		}
	}
	sort.Slice(confirmed, func(i, j int) bool { return confirmed[i].ID < confirmed[j].ID })

	if degenerate {
		return confirmed, ErrAssociationDegenerate
	}
	return confirmed, nil
}

// Get returns the live track with the given id, or nil if it no longer exists.
// Used to discard OCR results that arrive after their track was deleted.
func (m *Manager) Get(id int64) *Track {
	for _, t := range m.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Len returns the number of live tracks.
func (m *Manager) Len() int { return len(m.tracks) }
