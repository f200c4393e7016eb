package track

import "tollgate-service/internal/domain/toll"

// IoU returns the intersection-over-union of two boxes in [0, 1].
// Degenerate boxes (zero or negative area) yield 0.
func IoU(a, b toll.Box) float64 {
	if !a.Valid() || !b.Valid() {
		return 0
	}

	xLeft := max(a.X1, b.X1)
	yTop := max(a.Y1, b.Y1)
	xRight := min(a.X2, b.X2)
	yBottom := min(a.Y2, b.Y2)

	if xRight <= xLeft || yBottom <= yTop {
		return 0
	}

	intersection := (xRight - xLeft) * (yBottom - yTop)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
