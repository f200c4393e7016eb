package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"tollgate-service/internal/billing"
	"tollgate-service/internal/domain/toll"
	"tollgate-service/internal/plate"
	"tollgate-service/internal/track"
)

// Detector is the external object detection capability: zero or more plate
// candidates per frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]toll.Detection, error)
}

// Classifier is the optional secondary capability that classifies the
// vehicle from a padded region around the plate box. It never affects text
// consolidation.
type Classifier interface {
	Classify(ctx context.Context, region image.Image) (toll.VehicleType, error)
}

// PipelineConfig holds the per-stream processing knobs.
type PipelineConfig struct {
	CameraID               string
	MinDetectionConfidence float64
	// ClassifierPadding is the fraction of the plate box size added on each
	// side of the classifier crop.
	ClassifierPadding float64
}

// Pipeline is one camera stream's processing session. Frame processing is
// strictly sequential; a Pipeline must not be shared between goroutines.
// Several pipelines may run in parallel sharing only the debounce gate and
// the ledger.
type Pipeline struct {
	cfg          PipelineConfig
	tracker      *track.Manager
	consolidator *plate.Consolidator
	detector     Detector
	classifier   Classifier
	gate         *billing.DebounceGate
	ledger       *billing.Ledger
	log          zerolog.Logger

	frameIndex int
}

// NewPipeline wires a stream session. detector and classifier may be nil:
// without a detector the caller supplies detections directly, without a
// classifier the vehicle type comes from the registered account.
func NewPipeline(
	cfg PipelineConfig,
	tracker *track.Manager,
	consolidator *plate.Consolidator,
	detector Detector,
	classifier Classifier,
	gate *billing.DebounceGate,
	ledger *billing.Ledger,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		tracker:      tracker,
		consolidator: consolidator,
		detector:     detector,
		classifier:   classifier,
		gate:         gate,
		ledger:       ledger,
		log:          log.With().Str("component", "pipeline").Str("camera_id", cfg.CameraID).Logger(),
	}
}

// Close stops the OCR worker pool.
func (p *Pipeline) Close() { p.consolidator.Close() }

// ProcessFrame runs one frame through the tracker, triggers OCR for due
// tracks and attempts billing for tracks whose canonical text improved.
// Either frame or dets may be nil: a nil dets with a configured detector
// runs detection here, a nil frame skips OCR for this frame.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame image.Image, dets []toll.Detection, now time.Time) (*toll.FrameResult, error) {
	p.frameIndex++
	result := &toll.FrameResult{FrameIndex: p.frameIndex}
	billed := make(map[int64]*toll.BillingEvent)

	// Apply OCR results finished since the previous frame. Results for
	// deleted tracks are discarded silently.
	p.applyResults(ctx, frame, now, billed, result)

	if dets == nil && p.detector != nil && frame != nil {
		detected, err := p.detector.Detect(ctx, frame)
		if err != nil {
			p.log.Warn().Err(err).Int("frame", p.frameIndex).Msg("detector failed, coasting tracks")
		} else {
			dets = detected
		}
	}
	dets = p.filterDetections(dets)

	confirmed, err := p.tracker.Update(dets)
	if err != nil && !errors.Is(err, track.ErrAssociationDegenerate) {
		return nil, err
	}

	for _, t := range confirmed {
		if !p.consolidator.ShouldRecognize(t, p.frameIndex) {
			continue
		}
		region := cropBox(frame, t.Box(), 0)
		if region == nil {
			continue
		}
		p.consolidator.Submit(t, p.frameIndex, region)
	}

	// Pick up whatever finished already; with a synchronous consolidator
	// this delivers this frame's readings.
	p.applyResults(ctx, frame, now, billed, result)

	for _, t := range confirmed {
		snap := toll.TrackSnapshot{
			TrackID:    t.ID,
			Box:        t.Box(),
			Plate:      t.BestText,
			Confidence: t.BestConfidence,
			Billing:    billed[t.ID],
		}
		result.Tracks = append(result.Tracks, snap)
	}
	return result, nil
}

// applyResults drains finished OCR attempts, applies the monotonic best-of
// policy and attempts billing whenever a track's canonical text improved.
func (p *Pipeline) applyResults(ctx context.Context, frame image.Image, now time.Time, billed map[int64]*toll.BillingEvent, result *toll.FrameResult) {
	p.consolidator.Drain(func(res plate.Result) {
		t := p.tracker.Get(res.TrackID)
		if t == nil {
			p.log.Debug().Int64("track_id", res.TrackID).Msg("ocr result for dead track, discarded")
			return
		}
		if !t.ObserveText(res.Text, res.Confidence) {
			return
		}
		p.log.Debug().
			Int64("track_id", t.ID).
			Str("plate", t.BestText).
			Float64("confidence", t.BestConfidence).
			Msg("canonical text improved")

		if ev := p.attemptBilling(ctx, frame, t, now); ev != nil {
			billed[t.ID] = ev
			result.Events = append(result.Events, *ev)
		}
	})
}

// attemptBilling runs one canonical text through the debounce gate and, if
// admitted, through the ledger. The gate check always precedes the ledger.
func (p *Pipeline) attemptBilling(ctx context.Context, frame image.Image, t *track.Track, now time.Time) *toll.BillingEvent {
	plateText := t.BestText
	ev := &toll.BillingEvent{
		Plate:     plateText,
		EventTime: now,
	}

	if !p.gate.Allow(plateText, now) {
		ev.Outcome = toll.OutcomeSuppressed
		return ev
	}

	var vehicleType toll.VehicleType
	if p.classifier != nil && frame != nil {
		region := cropBox(frame, t.Box(), p.cfg.ClassifierPadding)
		if region != nil {
			if vt, err := p.classifier.Classify(ctx, region); err == nil {
				vehicleType = vt
			} else {
				p.log.Debug().Err(err).Int64("track_id", t.ID).Msg("classifier failed, using registered type")
			}
		}
	}

	evidence := fmt.Sprintf("%s_frame_%d_track_%d", p.cfg.CameraID, p.frameIndex, t.ID)
	tx, err := p.ledger.Charge(ctx, plateText, vehicleType, evidence)
	if errors.Is(err, billing.ErrConcurrencyConflict) {
		// One retry; the row lock holder has finished or the attempt fails.
		tx, err = p.ledger.Charge(ctx, plateText, vehicleType, evidence)
	}

	outcome := billing.Outcome(err)
	if outcome == "" {
		p.log.Error().Err(err).Str("plate", plateText).Msg("charge failed")
		return nil
	}
	ev.Outcome = outcome
	if tx != nil {
		ev.VehicleType = tx.VehicleType
		ev.Fee = tx.Fee
		ev.NewBalance = tx.RemainingBalance
		ev.TransactionID = tx.ID
	}
	return ev
}

func (p *Pipeline) filterDetections(dets []toll.Detection) []toll.Detection {
	if len(dets) == 0 {
		return dets
	}
	kept := dets[:0]
	for _, d := range dets {
		if d.Confidence >= p.cfg.MinDetectionConfidence {
			kept = append(kept, d)
		}
	}
	return kept
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropBox extracts the (optionally padded) box region from the frame,
// clamped to the frame bounds. Returns nil when the frame cannot be cropped
// or the clamped region is empty.
func cropBox(frame image.Image, b toll.Box, padding float64) image.Image {
	if frame == nil {
		return nil
	}
	sub, ok := frame.(subImager)
	if !ok {
		return nil
	}

	padX := b.Width() * padding
	padY := b.Height() * padding
	r := image.Rect(
		int(b.X1-padX), int(b.Y1-padY),
		int(b.X2+padX), int(b.Y2+padY),
	).Intersect(frame.Bounds())
	if r.Empty() {
		return nil
	}
	return sub.SubImage(r)
}
