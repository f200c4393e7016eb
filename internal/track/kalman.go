package track

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"tollgate-service/internal/domain/toll"
)

// boxFilter is a Kalman filter over the state
// [cx, cy, s, r, vcx, vcy, vs] where s is the box area, r the aspect ratio
// (held constant) and v* the per-frame velocities. The measurement is
// [cx, cy, s, r]. Velocity is inferred from consecutive noisy boxes through
// the covariance update rather than naive differencing.
type boxFilter struct {
	mean *mat.VecDense // 7x1 state estimate
	cov  *mat.Dense    // 7x7 estimation-error covariance

	f *mat.Dense // 7x7 state transition, constant velocity
	h *mat.Dense // 4x7 measurement model
	q *mat.Dense // 7x7 process noise
	r *mat.Dense // 4x4 measurement noise
}

const stateDim = 7
const measDim = 4

func newBoxFilter(b toll.Box) *boxFilter {
	f := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		f.Set(i, i, 1)
	}
	// Unit time step: position components advance by their velocity.
	f.Set(0, 4, 1)
	f.Set(1, 5, 1)
	f.Set(2, 6, 1)

	h := mat.NewDense(measDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		h.Set(i, i, 1)
	}

	q := mat.NewDense(stateDim, stateDim, nil)
	for i, v := range []float64{1, 1, 1, 1, 0.01, 0.01, 1e-4} {
		q.Set(i, i, v)
	}

	r := mat.NewDense(measDim, measDim, nil)
	for i, v := range []float64{1, 1, 10, 10} {
		r.Set(i, i, v)
	}

	cov := mat.NewDense(stateDim, stateDim, nil)
	// High uncertainty for the unobservable initial velocities.
	for i, v := range []float64{10, 10, 10, 10, 1e4, 1e4, 1e4} {
		cov.Set(i, i, v)
	}

	z := boxToMeasurement(b)
	mean := mat.NewVecDense(stateDim, nil)
	for i := 0; i < measDim; i++ {
		mean.SetVec(i, z.AtVec(i))
	}

	return &boxFilter{mean: mean, cov: cov, f: f, h: h, q: q, r: r}
}

// predict advances the state one time step and returns the predicted box.
func (k *boxFilter) predict() toll.Box {
	// Guard against the area estimate coasting below zero.
	if k.mean.AtVec(2)+k.mean.AtVec(6) <= 0 {
		k.mean.SetVec(6, 0)
	}

	var next mat.VecDense
	next.MulVec(k.f, k.mean)
	k.mean.CopyVec(&next)

	var fp, fpft mat.Dense
	fp.Mul(k.f, k.cov)
	fpft.Mul(&fp, k.f.T())
	fpft.Add(&fpft, k.q)
	k.cov.Copy(&fpft)

	return k.stateBox()
}

// update fuses an observed box into the state estimate.
func (k *boxFilter) update(b toll.Box) {
	z := boxToMeasurement(b)

	// Innovation y = z - H x
	var hx mat.VecDense
	hx.MulVec(k.h, k.mean)
	var y mat.VecDense
	y.SubVec(z, &hx)

	// Innovation covariance S = H P H^T + R
	var hp, s mat.Dense
	hp.Mul(k.h, k.cov)
	s.Mul(&hp, k.h.T())
	s.Add(&s, k.r)

	// Kalman gain K = P H^T S^-1
	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation covariance: skip the fuse, keep the prediction.
		return
	}
	var pht, gain mat.Dense
	pht.Mul(k.cov, k.h.T())
	gain.Mul(&pht, &sInv)

	// x' = x + K y
	var ky mat.VecDense
	ky.MulVec(&gain, &y)
	k.mean.AddVec(k.mean, &ky)

	// P' = (I - K H) P
	var kh mat.Dense
	kh.Mul(&gain, k.h)
	eye := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		eye.Set(i, i, 1)
	}
	var ikh, newP mat.Dense
	ikh.Sub(eye, &kh)
	newP.Mul(&ikh, k.cov)
	k.cov.Copy(&newP)
}

// stateBox converts the current state estimate back to corner form.
func (k *boxFilter) stateBox() toll.Box {
	return measurementToBox(k.mean.AtVec(0), k.mean.AtVec(1), k.mean.AtVec(2), k.mean.AtVec(3))
}

// boxToMeasurement maps a corner box to [cx, cy, area, aspect].
func boxToMeasurement(b toll.Box) *mat.VecDense {
	w := b.Width()
	h := b.Height()
	return mat.NewVecDense(measDim, []float64{
		b.X1 + w/2,
		b.Y1 + h/2,
		w * h,
		w / h,
	})
}

// measurementToBox maps [cx, cy, area, aspect] back to corner form.
func measurementToBox(cx, cy, s, r float64) toll.Box {
	if s < 0 {
		s = 0
	}
	if r <= 0 {
		r = 1
	}
	w := math.Sqrt(s * r)
	h := 0.0
	if w > 0 {
		h = s / w
	}
	return toll.Box{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}
