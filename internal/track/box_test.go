package track

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tollgate-service/internal/domain/toll"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b toll.Box
		want float64
	}{
		{
			name: "identical boxes",
			a:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			want: 1.0,
		},
		{
			name: "disjoint boxes",
			a:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:    toll.Box{X1: 20, Y1: 20, X2: 30, Y2: 30},
			want: 0.0,
		},
		{
			name: "touching edges",
			a:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:    toll.Box{X1: 10, Y1: 0, X2: 20, Y2: 10},
			want: 0.0,
		},
		{
			name: "half horizontal overlap",
			a:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:    toll.Box{X1: 5, Y1: 0, X2: 15, Y2: 10},
			// intersection 50, union 150
			want: 1.0 / 3.0,
		},
		{
			name: "contained box",
			a:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:    toll.Box{X1: 2, Y1: 2, X2: 8, Y2: 8},
			want: 36.0 / 100.0,
		},
		{
			name: "degenerate box",
			a:    toll.Box{X1: 5, Y1: 5, X2: 5, Y2: 5},
			b:    toll.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-9, "IoU must be symmetric")
		})
	}
}
