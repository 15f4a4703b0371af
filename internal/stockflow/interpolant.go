package stockflow

import (
	"fmt"
	"sort"
)

// densePiece is the continuous extension of one accepted integrator step
// over [t0, t0+h].
type densePiece struct {
	t0, h  float64
	y0, y1 []float64
	k1, k2 []float64
}

func (p *densePiece) end() float64 { return p.t0 + p.h }

// eval writes the interpolated state at t into dst.
func (p *densePiece) eval(t float64, dst []float64) {
	if t >= p.end() {
		copy(dst, p.y1)
		return
	}
	if t <= p.t0 {
		copy(dst, p.y0)
		return
	}
	s := (t - p.t0) / p.h
	c1 := s * (1 - s) / (1 - 2*rosD)
	c2 := s * (s - 2*rosD) / (1 - 2*rosD)
	for i := range dst {
		dst[i] = p.y0[i] + p.h*(c1*p.k1[i]+c2*p.k2[i])
	}
}

// Segment is the dense output of one bounded sub-solve.
type Segment struct {
	Start, End float64
	pieces     []densePiece
}

// Steps returns the number of accepted integrator steps in the segment.
func (s *Segment) Steps() int { return len(s.pieces) }

// Final returns the state at End.
func (s *Segment) Final() StockVector {
	if len(s.pieces) == 0 {
		return nil
	}
	return StockVector(s.pieces[len(s.pieces)-1].y1).Clone()
}

// At writes the state at t (Start <= t <= End) into dst.
func (s *Segment) At(t float64, dst []float64) {
	i := sort.Search(len(s.pieces), func(i int) bool { return s.pieces[i].end() >= t })
	if i == len(s.pieces) {
		i = len(s.pieces) - 1
	}
	s.pieces[i].eval(t, dst)
}

// Interpolant chains segments covering [0, End()]. Segments are appended,
// never modified.
type Interpolant struct {
	segments []*Segment
	starts   []float64
}

// Len returns the number of segments.
func (ip *Interpolant) Len() int { return len(ip.segments) }

// End returns the end of the last segment, or 0 when empty.
func (ip *Interpolant) End() float64 {
	if len(ip.segments) == 0 {
		return 0
	}
	return ip.segments[len(ip.segments)-1].End
}

// Append adds seg, which must start where the chain ends.
func (ip *Interpolant) Append(seg *Segment) error {
	if len(seg.pieces) == 0 {
		return fmt.Errorf("segment [%g, %g] has no steps", seg.Start, seg.End)
	}
	if len(ip.segments) > 0 && seg.Start != ip.End() {
		return fmt.Errorf("segment starts at %g, chain ends at %g", seg.Start, ip.End())
	}
	ip.segments = append(ip.segments, seg)
	ip.starts = append(ip.starts, seg.Start)
	return nil
}

// At writes the state at t into dst and reports whether t is covered.
func (ip *Interpolant) At(t float64, dst []float64) bool {
	if len(ip.segments) == 0 || t < ip.starts[0] || t > ip.End() {
		return false
	}
	// Last segment whose start is <= t.
	i := sort.Search(len(ip.starts), func(i int) bool { return ip.starts[i] > t }) - 1
	if i < 0 {
		i = 0
	}
	ip.segments[i].At(t, dst)
	return true
}
