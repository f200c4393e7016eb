package plate

import (
	"context"
	"image"

	"tollgate-service/internal/domain/toll"
)

// Recognizer is the external OCR capability: given a plate crop and a
// language constraint it returns zero or more candidate readings.
type Recognizer interface {
	Recognize(ctx context.Context, region image.Image, language string) ([]toll.PlateReading, error)
}

// Validator normalizes raw OCR readings into one canonical, fixed-grammar
// plate string for a language, or "" when nothing usable was read.
type Validator interface {
	Validate(readings []toll.PlateReading, language string) string
}
