package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// cdfSize is the number of evenly spaced points the platform expects a
// continuous forecast to be submitted as.
const cdfSize = 201

// minCDFStep keeps the submitted CDF strictly increasing, which the platform
// requires.
const minCDFStep = 5e-05

// NumericDistribution approximates a continuous outcome's uncertainty as a
// set of declared (percentile rank, value) pairs over a question's range.
// Date distributions carry values in Unix-timestamp space.
type NumericDistribution struct {
	DeclaredPercentiles []Percentile
	LowerBound          float64
	UpperBound          float64
	OpenLowerBound      bool
	OpenUpperBound      bool
	ZeroPoint           *float64
	IsDate              bool
}

// NewNumericDistribution builds a distribution from declared percentiles and
// the question's range. Percentiles are sorted by rank on construction and
// values clamped into the question's range where the bound is closed.
func NewNumericDistribution(percentiles PercentileList, q *Question) (*NumericDistribution, error) {
	if err := percentiles.Validate(); err != nil {
		return nil, fmt.Errorf("invalid percentiles: %w", err)
	}

	declared := make([]Percentile, len(percentiles))
	copy(declared, percentiles)
	sort.Slice(declared, func(i, j int) bool { return declared[i].Percentile < declared[j].Percentile })

	for i := range declared {
		if !q.OpenLowerBound && declared[i].Value < q.LowerBound {
			declared[i].Value = q.LowerBound
		}
		if !q.OpenUpperBound && declared[i].Value > q.UpperBound {
			declared[i].Value = q.UpperBound
		}
	}

	return &NumericDistribution{
		DeclaredPercentiles: declared,
		LowerBound:          q.LowerBound,
		UpperBound:          q.UpperBound,
		OpenLowerBound:      q.OpenLowerBound,
		OpenUpperBound:      q.OpenUpperBound,
		ZeroPoint:           q.ZeroPoint,
		IsDate:              q.Type == QuestionTypeDate,
	}, nil
}

// NewDateDistribution builds a date-typed distribution from date percentiles,
// carrying values through Unix-timestamp space.
func NewDateDistribution(percentiles DatePercentileList, q *Question) (*NumericDistribution, error) {
	dist, err := NewNumericDistribution(percentiles.ToPercentiles(), q)
	if err != nil {
		return nil, err
	}
	dist.IsDate = true
	return dist, nil
}

// Median returns the declared value closest to the 50th percentile.
func (d *NumericDistribution) Median() float64 {
	if len(d.DeclaredPercentiles) == 0 {
		return 0
	}
	best := d.DeclaredPercentiles[0]
	for _, p := range d.DeclaredPercentiles[1:] {
		if abs(p.Percentile-50) < abs(best.Percentile-50) {
			best = p
		}
	}
	return best.Value
}

// DeclaredDatePercentiles reconstructs the date-typed percentiles of a date
// distribution.
func (d *NumericDistribution) DeclaredDatePercentiles() DatePercentileList {
	out := make(DatePercentileList, len(d.DeclaredPercentiles))
	for i, p := range d.DeclaredPercentiles {
		out[i] = DatePercentile{Percentile: p.Percentile, Date: time.Unix(int64(p.Value), 0).UTC()}
	}
	return out
}

// CDF evaluates the distribution as the 201-point cumulative distribution the
// platform's forecast endpoint expects. Probability mass is interpolated
// linearly between declared percentiles; open bounds keep residual mass
// outside the range.
func (d *NumericDistribution) CDF() []float64 {
	lowerP := 0.0
	if d.OpenLowerBound {
		lowerP = 0.01
	}
	upperP := 1.0
	if d.OpenUpperBound {
		upperP = 0.99
	}

	// Anchor points in (value, cumulative probability) space.
	points := []cdfPoint{{d.LowerBound, lowerP}}
	for _, decl := range d.DeclaredPercentiles {
		p := decl.Percentile / 100
		if p <= lowerP || p >= upperP {
			continue
		}
		x := decl.Value
		if x <= points[len(points)-1].x {
			continue
		}
		if x >= d.UpperBound {
			continue
		}
		points = append(points, cdfPoint{x, p})
	}
	points = append(points, cdfPoint{d.UpperBound, upperP})

	cdf := make([]float64, cdfSize)
	for i := range cdf {
		cdf[i] = interpolate(d.evalPoint(i), points)
	}

	// Strictly increasing with a minimum step, then renormalized back under
	// the upper boundary mass.
	for i := 1; i < len(cdf); i++ {
		floor := cdf[i-1] + minCDFStep
		if cdf[i] < floor {
			cdf[i] = floor
		}
	}
	if over := cdf[len(cdf)-1] - upperP; over > 0 {
		for i := range cdf {
			cdf[i] = lowerP + (cdf[i]-lowerP)*(upperP-lowerP)/(upperP-lowerP+over)
		}
	}
	return cdf
}

// evalPoint returns the value the i-th of the 201 CDF points is evaluated at.
// Linear ranges space the points evenly; log-scaled ranges (zero point set)
// deform the grid the same way the platform renders them:
// x_i = lower + (upper-lower)*(r^(i/200)-1)/(r-1) with r = (upper-zp)/(lower-zp).
func (d *NumericDistribution) evalPoint(i int) float64 {
	frac := float64(i) / float64(cdfSize-1)
	if d.ZeroPoint != nil {
		ratio := (d.UpperBound - *d.ZeroPoint) / (d.LowerBound - *d.ZeroPoint)
		if ratio > 0 && ratio != 1 {
			return d.LowerBound + (d.UpperBound-d.LowerBound)*(math.Pow(ratio, frac)-1)/(ratio-1)
		}
	}
	return d.LowerBound + (d.UpperBound-d.LowerBound)*frac
}

type cdfPoint struct{ x, p float64 }

func interpolate(x float64, points []cdfPoint) float64 {
	if x <= points[0].x {
		return points[0].p
	}
	for i := 1; i < len(points); i++ {
		if x <= points[i].x {
			prev, next := points[i-1], points[i]
			if next.x == prev.x {
				return next.p
			}
			frac := (x - prev.x) / (next.x - prev.x)
			return prev.p + frac*(next.p-prev.p)
		}
	}
	return points[len(points)-1].p
}

func (d *NumericDistribution) Readable() string {
	if d.IsDate {
		return fmt.Sprintf("median %s", time.Unix(int64(d.Median()), 0).UTC().Format("2006-01-02"))
	}
	return fmt.Sprintf("median %v", d.Median())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
