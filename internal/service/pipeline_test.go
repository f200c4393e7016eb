package service

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate-service/internal/billing"
	"tollgate-service/internal/domain/toll"
	"tollgate-service/internal/plate"
	"tollgate-service/internal/track"
)

// scriptedRecognizer returns the same text with a confidence popped from the
// script on every call, so successive reads can improve or stagnate on demand.
type scriptedRecognizer struct {
	text        string
	confidences []float64
	calls       int
}

func (s *scriptedRecognizer) Recognize(ctx context.Context, region image.Image, language string) ([]toll.PlateReading, error) {
	if language != plate.LanguageEnglish {
		return nil, nil
	}
	conf := s.confidences[len(s.confidences)-1]
	if s.calls < len(s.confidences) {
		conf = s.confidences[s.calls]
	}
	s.calls++
	return []toll.PlateReading{{Text: s.text, Confidence: conf}}, nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *billing.MemoryStore
	base     time.Time
}

func newPipelineFixture(t *testing.T, rec plate.Recognizer) *pipelineFixture {
	t.Helper()
	log := zerolog.Nop()

	store := billing.NewMemoryStore()
	require.NoError(t, store.CreateAccount(context.Background(), &toll.Account{
		OwnerName:   "Test Owner",
		Plate:       "ABC 1234",
		VehicleType: toll.VehicleCar,
		Balance:     decimal.NewFromInt(100),
	}))

	consolidatorCfg := plate.DefaultConfig()
	consolidatorCfg.Workers = 0 // synchronous, deterministic
	consolidatorCfg.Languages = []string{plate.LanguageEnglish}

	p := NewPipeline(
		PipelineConfig{CameraID: "gate-1", MinDetectionConfidence: 0.7},
		track.NewManager(track.DefaultConfig(), log),
		plate.NewConsolidator(rec, plate.GrammarValidator{MinConfidence: 0.5}, consolidatorCfg, log),
		nil, nil,
		billing.NewDebounceGate(30*time.Second),
		billing.NewLedger(store, log),
		log,
	)
	t.Cleanup(p.Close)

	return &pipelineFixture{
		pipeline: p,
		store:    store,
		base:     time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}
}

func (f *pipelineFixture) frame(t *testing.T, offset time.Duration, dets ...toll.Detection) *toll.FrameResult {
	t.Helper()
	// image.RGBA supports SubImage, which the crop path requires.
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	res, err := f.pipeline.ProcessFrame(context.Background(), img, dets, f.base.Add(offset))
	require.NoError(t, err)
	return res
}

func plateDet(x float64) toll.Detection {
	return toll.Detection{
		Box:        toll.Box{X1: x, Y1: 100, X2: x + 80, Y2: 140},
		Confidence: 0.9,
	}
}

func TestPipelineChargesOncePerWindow(t *testing.T) {
	rec := &scriptedRecognizer{text: "ABC1234", confidences: []float64{0.8, 0.85, 0.88}}
	f := newPipelineFixture(t, rec)

	// Frames 1-2: track still tentative, no OCR, no billing.
	for i := 0; i < 2; i++ {
		res := f.frame(t, time.Duration(i)*time.Second, plateDet(float64(i*5)))
		assert.Empty(t, res.Tracks)
		assert.Empty(t, res.Events)
	}

	// Frame 3: confirmation triggers the first read and the first charge.
	res := f.frame(t, 2*time.Second, plateDet(10))
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "ABC 1234", res.Tracks[0].Plate)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, toll.OutcomeCharged, ev.Outcome)
	assert.Equal(t, "ABC 1234", ev.Plate)
	assert.True(t, ev.Fee.Equal(decimal.NewFromInt(50)))
	assert.True(t, ev.NewBalance.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, res.Tracks[0].Billing)
	assert.Equal(t, toll.OutcomeCharged, res.Tracks[0].Billing.Outcome)

	// Frames 4-12: inside the OCR cadence, nothing new happens.
	for i := 4; i <= 12; i++ {
		res = f.frame(t, time.Duration(i)*time.Second, plateDet(10+float64(i)))
		assert.Empty(t, res.Events)
	}

	// Frame 13: cadence elapsed, the re-read improves the confidence, but the
	// debounce window suppresses the second charge.
	res = f.frame(t, 13*time.Second, plateDet(25))
	require.Len(t, res.Events, 1)
	assert.Equal(t, toll.OutcomeSuppressed, res.Events[0].Outcome)

	// Same cadence again, this time past the debounce window: charged again.
	for i := 14; i <= 22; i++ {
		f.frame(t, time.Duration(i)*time.Second, plateDet(25))
	}
	res = f.frame(t, 40*time.Second, plateDet(25))
	require.Len(t, res.Events, 1)
	assert.Equal(t, toll.OutcomeCharged, res.Events[0].Outcome)
	assert.True(t, res.Events[0].NewBalance.IsZero())

	txs, err := f.store.ListTransactions(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestPipelineNoRepeatChargeWithoutImprovement(t *testing.T) {
	// Confidence never improves after the first read, so no further billing
	// attempt is ever made, even long past the debounce window.
	rec := &scriptedRecognizer{text: "ABC1234", confidences: []float64{0.8}}
	f := newPipelineFixture(t, rec)

	for i := 0; i < 3; i++ {
		f.frame(t, time.Duration(i)*time.Second, plateDet(float64(i*5)))
	}

	totalEvents := 0
	for i := 3; i < 30; i++ {
		res := f.frame(t, time.Duration(i*10)*time.Second, plateDet(15))
		totalEvents += len(res.Events)
	}
	assert.Zero(t, totalEvents)

	txs, err := f.store.ListTransactions(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "only the initial charge")
}

func TestPipelineUnregisteredPlate(t *testing.T) {
	rec := &scriptedRecognizer{text: "ZZZ9999", confidences: []float64{0.8}}
	f := newPipelineFixture(t, rec)

	var events []toll.BillingEvent
	for i := 0; i < 3; i++ {
		res := f.frame(t, time.Duration(i)*time.Second, plateDet(float64(i*5)))
		events = append(events, res.Events...)
	}
	require.Len(t, events, 1)
	assert.Equal(t, toll.OutcomeUnregistered, events[0].Outcome)
	assert.Equal(t, "ZZZ 9999", events[0].Plate)
}

func TestPipelineInsufficientBalance(t *testing.T) {
	rec := &scriptedRecognizer{text: "ABC1234", confidences: []float64{0.8}}
	f := newPipelineFixture(t, rec)

	// Drain the account so the charge cannot succeed.
	_, err := f.store.DebitAndRecord(context.Background(), "ABC 1234", toll.VehicleCar, decimal.NewFromInt(80), "setup")
	require.NoError(t, err)

	var events []toll.BillingEvent
	for i := 0; i < 3; i++ {
		res := f.frame(t, time.Duration(i)*time.Second, plateDet(float64(i*5)))
		events = append(events, res.Events...)
	}
	require.Len(t, events, 1)
	assert.Equal(t, toll.OutcomeInsufficientBalance, events[0].Outcome)
}

func TestPipelineFiltersLowConfidenceDetections(t *testing.T) {
	rec := &scriptedRecognizer{text: "ABC1234", confidences: []float64{0.8}}
	f := newPipelineFixture(t, rec)

	weak := toll.Detection{Box: toll.Box{X1: 0, Y1: 0, X2: 80, Y2: 40}, Confidence: 0.3}
	for i := 0; i < 5; i++ {
		res := f.frame(t, time.Duration(i)*time.Second, weak)
		assert.Empty(t, res.Tracks, "weak detections must not form tracks")
	}
}

func TestPipelineNilFrameSkipsOCR(t *testing.T) {
	rec := &scriptedRecognizer{text: "ABC1234", confidences: []float64{0.8}}
	f := newPipelineFixture(t, rec)

	for i := 0; i < 3; i++ {
		res, err := f.pipeline.ProcessFrame(context.Background(), nil, []toll.Detection{plateDet(float64(i * 5))}, f.base)
		require.NoError(t, err)
		assert.Empty(t, res.Events)
	}
	assert.Zero(t, rec.calls)
}

func TestPipelineDegenerateDetectionsCoast(t *testing.T) {
	rec := &scriptedRecognizer{text: "ABC1234", confidences: []float64{0.8}}
	f := newPipelineFixture(t, rec)

	for i := 0; i < 3; i++ {
		f.frame(t, time.Duration(i)*time.Second, plateDet(float64(i*5)))
	}

	bad := toll.Detection{Box: toll.Box{X1: 50, Y1: 50, X2: 10, Y2: 10}, Confidence: 0.9}
	res := f.frame(t, 4*time.Second, bad)
	assert.Empty(t, res.Tracks)

	// The track survives and reports again on the next good frame.
	res = f.frame(t, 5*time.Second, plateDet(15))
	assert.Len(t, res.Tracks, 1)
}
