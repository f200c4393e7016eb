package plate

import (
	"context"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"tollgate-service/internal/track"
)

// Config holds the text consolidation policy knobs.
type Config struct {
	// Interval is the minimum number of frames between OCR attempts for a
	// track that already has a canonical text.
	Interval int
	// HighConfidence stops re-reading once a track's best confidence
	// reaches it.
	HighConfidence float64
	// Workers sizes the OCR worker pool. Zero means recognition runs
	// synchronously inside Submit, which tests rely on for determinism.
	Workers int
	// QueueSize bounds the job queue; submissions beyond it are dropped and
	// naturally retried on the next qualifying frame.
	QueueSize int
	// Languages are tried in order; on equal confidence the earlier one wins.
	Languages []string
}

// DefaultConfig returns the production consolidation parameters.
func DefaultConfig() Config {
	return Config{
		Interval:       10,
		HighConfidence: 0.9,
		Workers:        2,
		QueueSize:      64,
		Languages:      []string{LanguageEnglish, LanguageNepali},
	}
}

// Result is one finished OCR attempt. TrackID may refer to a track that no
// longer exists; the caller discards such results.
type Result struct {
	TrackID    int64
	FrameIndex int
	Text       string
	Confidence float64
	Language   string
}

type job struct {
	trackID    int64
	frameIndex int
	region     image.Image
}

// Consolidator merges noisy per-frame OCR readings into one canonical plate
// string per track. Recognition runs on a bounded worker pool; results are
// drained by the owning pipeline at frame boundaries.
type Consolidator struct {
	rec Recognizer
	val Validator
	cfg Config
	log zerolog.Logger

	jobs    chan job
	results chan Result
	wg      sync.WaitGroup
	closed  bool
	mu      sync.Mutex
}

// NewConsolidator builds a Consolidator and starts its worker pool.
func NewConsolidator(rec Recognizer, val Validator, cfg Config, log zerolog.Logger) *Consolidator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{LanguageEnglish}
	}
	c := &Consolidator{
		rec:     rec,
		val:     val,
		cfg:     cfg,
		log:     log.With().Str("component", "consolidator").Logger(),
		jobs:    make(chan job, cfg.QueueSize),
		results: make(chan Result, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// ShouldRecognize reports whether a track is due for an OCR attempt: always
// while it has no canonical text, then on the configured cadence until its
// confidence is high enough.
func (c *Consolidator) ShouldRecognize(t *track.Track, frameIndex int) bool {
	if t.BestText == "" {
		return true
	}
	if t.BestConfidence >= c.cfg.HighConfidence {
		return false
	}
	return frameIndex-t.LastOCRFrame >= c.cfg.Interval
}

// Submit queues an OCR attempt for the track's current crop. It records the
// attempt on the track and reports whether the job was accepted; a full queue
// drops the job, to be retried on the next qualifying frame.
func (c *Consolidator) Submit(t *track.Track, frameIndex int, region image.Image) bool {
	if region == nil {
		return false
	}
	t.LastOCRFrame = frameIndex

	if c.cfg.Workers <= 0 {
		res := c.recognize(job{trackID: t.ID, frameIndex: frameIndex, region: region})
		select {
		case c.results <- res:
			return true
		default:
			return false
		}
	}

	select {
	case c.jobs <- job{trackID: t.ID, frameIndex: frameIndex, region: region}:
		return true
	default:
		c.log.Debug().Int64("track_id", t.ID).Msg("ocr queue full, dropping attempt")
		return false
	}
}

// Drain delivers every finished result without blocking.
func (c *Consolidator) Drain(apply func(Result)) {
	for {
		select {
		case res := <-c.results:
			apply(res)
		default:
			return
		}
	}
}

// Close stops the worker pool. Pending jobs are finished first.
func (c *Consolidator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.jobs)
	c.wg.Wait()
}

func (c *Consolidator) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		res := c.recognize(j)
		select {
		case c.results <- res:
		default:
			// Result buffer full: drop, the track will be re-read later.
		}
	}
}

// recognize runs every configured language over the crop, validates each
// reading set and keeps the most confident canonical text.
func (c *Consolidator) recognize(j job) Result {
	best := Result{TrackID: j.trackID, FrameIndex: j.frameIndex}
	for _, lang := range c.cfg.Languages {
		readings, err := c.rec.Recognize(context.Background(), j.region, lang)
		if err != nil {
			// Skip this language for this cycle; the track persists and the
			// next qualifying frame retries.
			c.log.Debug().Err(err).Str("language", lang).Int64("track_id", j.trackID).Msg("recognizer failed")
			continue
		}
		canonical := c.val.Validate(readings, lang)
		if canonical == "" {
			continue
		}
		conf := 0.0
		for _, r := range readings {
			if r.Confidence > conf {
				conf = r.Confidence
			}
		}
		if conf > best.Confidence {
			best.Text = canonical
			best.Confidence = conf
			best.Language = lang
		}
	}
	return best
}
