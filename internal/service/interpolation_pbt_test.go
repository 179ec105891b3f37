package service

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestInterpolateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	timestamps := gen.Int64Range(0, 1<<32)
	spans := gen.Int64Range(1, 1<<20)
	prices := gen.Float64Range(0.000001, 1_000_000)

	properties.Property("result stays within the price bounds", prop.ForAll(
		func(t0, span int64, p0, p1, frac float64) bool {
			t1 := t0 + span
			target := t0 + int64(frac*float64(span))
			got := Interpolate(target, t0, p0, t1, p1)
			lo, hi := math.Min(p0, p1), math.Max(p0, p1)
			return got >= lo-1e-6 && got <= hi+1e-6
		},
		timestamps, spans, prices, prices, gen.Float64Range(0, 1),
	))

	properties.Property("endpoints reproduce the known prices", prop.ForAll(
		func(t0, span int64, p0, p1 float64) bool {
			t1 := t0 + span
			atStart := Interpolate(t0, t0, p0, t1, p1)
			atEnd := Interpolate(t1, t0, p0, t1, p1)
			return math.Abs(atStart-p0) < 1e-6 && math.Abs(atEnd-p1) < 1e-6
		},
		timestamps, spans, prices, prices,
	))

	properties.Property("monotonic in target when prices increase", prop.ForAll(
		func(t0, span int64, p0, delta, fa, fb float64) bool {
			t1 := t0 + span
			p1 := p0 + delta
			ta := t0 + int64(fa*float64(span))
			tb := t0 + int64(fb*float64(span))
			if ta > tb {
				ta, tb = tb, ta
			}
			return Interpolate(ta, t0, p0, t1, p1) <= Interpolate(tb, t0, p0, t1, p1)+1e-6
		},
		timestamps, spans, prices, gen.Float64Range(0, 1_000_000),
		gen.Float64Range(0, 1), gen.Float64Range(0, 1),
	))

	properties.Property("equal endpoints never divide by zero", prop.ForAll(
		func(t0 int64, target int64, p0, p1 float64) bool {
			got := Interpolate(target, t0, p0, t0, p1)
			return got == p0
		},
		timestamps, timestamps, prices, prices,
	))

	properties.TestingRun(t)
}
