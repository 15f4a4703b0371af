package stockflow

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Coefficients of the second-order Rosenbrock pair with a third-order error
// estimate (Shampine & Reichelt, "The MATLAB ODE Suite", 1997).
const (
	rosD   = 1 / (2 + math.Sqrt2)
	rosE32 = 6 + math.Sqrt2
)

const (
	// maxCond is the condition number above which W = I - h*d*J is
	// treated as singular.
	maxCond = 1e14

	// Step growth and shrink bounds.
	maxGrowth = 5.0
	minShrink = 0.2
	safety    = 0.8
)

var sqrtEps = math.Sqrt(2.220446049250313e-16)

type rhsFunc func(t float64, y, dydt []float64) error

// rosenbrock is a linearly implicit adaptive integrator. The Jacobian and
// time derivative are approximated by forward differences once per accepted
// step; only W is refactorized when a step is rejected.
type rosenbrock struct {
	n          int
	rtol, atol float64
	maxSteps   int
	f          rhsFunc

	f0, f1, f2, tdot []float64
	tmp, rhs         []float64
	jac, w           *mat.Dense
	lu               mat.LU
	xv, bv           *mat.VecDense
}

func newRosenbrock(n int, rtol, atol float64, maxSteps int, f rhsFunc) *rosenbrock {
	r := &rosenbrock{
		n:        n,
		rtol:     rtol,
		atol:     atol,
		maxSteps: maxSteps,
		f:        f,
		f0:       make([]float64, n),
		f1:       make([]float64, n),
		f2:       make([]float64, n),
		tdot:     make([]float64, n),
		tmp:      make([]float64, n),
		rhs:      make([]float64, n),
		jac:      mat.NewDense(n, n, nil),
		w:        mat.NewDense(n, n, nil),
	}
	r.bv = mat.NewVecDense(n, r.rhs)
	r.xv = mat.NewVecDense(n, nil)
	return r
}

// integrate advances y0 from t0 to t1 and returns the dense segment.
func (r *rosenbrock) integrate(t0, t1 float64, y0 []float64) (*Segment, error) {
	n := r.n
	seg := &Segment{Start: t0, End: t1}
	fail := func(t, h float64, cause error) (*Segment, error) {
		return nil, &IntegrationError{Start: t0, End: t1, Time: t, Step: h, Cause: cause}
	}

	t := t0
	y := append([]float64(nil), y0...)
	if err := r.f(t, y, r.f0); err != nil {
		return nil, err
	}
	if !allFinite(r.f0) {
		return fail(t, 0, ErrNonFinite)
	}

	// Initial step from the slope scaled by the solution weights.
	span := t1 - t0
	h := span
	rh := 0.0
	for i := 0; i < n; i++ {
		wt := math.Max(math.Abs(y[i]), r.atol/r.rtol)
		rh = math.Max(rh, math.Abs(r.f0[i])/wt)
	}
	rh /= safety * math.Cbrt(r.rtol)
	if h*rh > 1 {
		h = 1 / rh
	}

	if err := r.derivatives(t, y, h); err != nil {
		return nil, err
	}

	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	ynew := make([]float64, n)

	rejected := 0
	for steps := 0; ; steps++ {
		if steps >= r.maxSteps {
			return fail(t, h, ErrStepBudget)
		}
		hmin := 16 * 2.220446049250313e-16 * math.Max(math.Abs(t), 1)
		if h < hmin {
			return fail(t, h, ErrStepTooSmall)
		}
		last := false
		tnew := t + h
		if 1.1*h >= t1-t {
			h = t1 - t
			tnew = t1
			last = true
		}

		if err := r.factor(h); err != nil {
			h *= 0.5
			if h < hmin {
				return fail(t, h, err)
			}
			continue
		}

		// k1 = W \ (F0 + h d T)
		for i := 0; i < n; i++ {
			r.rhs[i] = r.f0[i] + h*rosD*r.tdot[i]
		}
		r.solve(k1)

		// F1 = f(t + h/2, y + h/2 k1); k2 = W \ (F1 - k1) + k1
		for i := 0; i < n; i++ {
			r.tmp[i] = y[i] + 0.5*h*k1[i]
		}
		if err := r.f(t+0.5*h, r.tmp, r.f1); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			r.rhs[i] = r.f1[i] - k1[i]
		}
		r.solve(k2)
		for i := 0; i < n; i++ {
			k2[i] += k1[i]
			ynew[i] = y[i] + h*k2[i]
		}

		// F2 = f(t + h, ynew); k3 for the error estimate.
		if err := r.f(tnew, ynew, r.f2); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			r.rhs[i] = r.f2[i] - rosE32*(k2[i]-r.f1[i]) - 2*(k1[i]-r.f0[i]) + h*rosD*r.tdot[i]
		}
		r.solve(k3)

		errNorm := 0.0
		for i := 0; i < n; i++ {
			e := h / 6 * (k1[i] - 2*k2[i] + k3[i])
			sc := r.atol + r.rtol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
			errNorm = math.Max(errNorm, math.Abs(e)/sc)
		}

		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !allFinite(ynew) || errNorm > 1 {
			if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !allFinite(ynew) {
				h *= minShrink
			} else {
				h *= math.Max(minShrink, safety*math.Pow(errNorm, -1.0/3))
			}
			// A lag discontinuity just past t makes the forward-difference
			// df/dt meaningless; after repeated rejections drop it.
			if rejected++; rejected >= 3 {
				clear(r.tdot)
			}
			continue
		}
		rejected = 0

		seg.pieces = append(seg.pieces, densePiece{
			t0: t,
			h:  h,
			y0: append([]float64(nil), y...),
			y1: append([]float64(nil), ynew...),
			k1: append([]float64(nil), k1...),
			k2: append([]float64(nil), k2...),
		})

		if last {
			return seg, nil
		}

		t = tnew
		copy(y, ynew)
		copy(r.f0, r.f2)

		growth := maxGrowth
		if errNorm > 0 {
			growth = math.Min(maxGrowth, safety*math.Pow(errNorm, -1.0/3))
		}
		h *= growth
		if err := r.derivatives(t, y, h); err != nil {
			return nil, err
		}
	}
}

// derivatives refreshes the finite-difference Jacobian and df/dt at (t, y).
// r.f0 must already hold f(t, y).
func (r *rosenbrock) derivatives(t float64, y []float64, h float64) error {
	n := r.n

	dt := sqrtEps * math.Max(math.Abs(t), math.Abs(h))
	if dt == 0 {
		dt = sqrtEps
	}
	switch err := r.f(t+dt, y, r.f1); {
	case errors.Is(err, ErrDelayLookup):
		// t+dt reaches past solved history; treat f as autonomous here.
		clear(r.tdot)
	case err != nil:
		return err
	default:
		for i := 0; i < n; i++ {
			r.tdot[i] = (r.f1[i] - r.f0[i]) / dt
		}
	}

	copy(r.tmp, y)
	for j := 0; j < n; j++ {
		dy := sqrtEps * math.Max(math.Abs(y[j]), 1)
		r.tmp[j] = y[j] + dy
		if err := r.f(t, r.tmp, r.f1); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			r.jac.Set(i, j, (r.f1[i]-r.f0[i])/dy)
		}
		r.tmp[j] = y[j]
	}
	return nil
}

// factor builds W = I - h*d*J and LU-factorizes it.
func (r *rosenbrock) factor(h float64) error {
	r.w.Scale(-h*rosD, r.jac)
	for i := 0; i < r.n; i++ {
		r.w.Set(i, i, 1+r.w.At(i, i))
	}
	r.lu.Factorize(r.w)
	if c := r.lu.Cond(); math.IsInf(c, 1) || math.IsNaN(c) || c > maxCond {
		return ErrSingularMatrix
	}
	return nil
}

// solve writes W \ r.rhs into dst.
func (r *rosenbrock) solve(dst []float64) {
	// factor rejects ill-conditioned W, so a Condition error cannot occur.
	_ = r.lu.SolveVecTo(r.xv, false, r.bv)
	for i := range dst {
		dst[i] = r.xv.AtVec(i)
	}
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
