package imaging

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ThresholdMode selects how the trap threshold is obtained
type ThresholdMode string

const (
	ThresholdFixed ThresholdMode = "fixed"
	ThresholdMean  ThresholdMode = "mean"
	ThresholdOtsu  ThresholdMode = "otsu"
)

const otsuBins = 256

// ErrEmptyRaster is returned when an adaptive threshold has no opaque pixels to work with
var ErrEmptyRaster = errors.New("raster has no opaque pixels")

// Threshold is a parsed threshold setting
type Threshold struct {
	Mode  ThresholdMode
	Value float64
}

// ParseThreshold accepts a number in [0,1], "mean" or "otsu"
func ParseThreshold(input string) (Threshold, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case string(ThresholdMean):
		return Threshold{Mode: ThresholdMean}, nil
	case string(ThresholdOtsu):
		return Threshold{Mode: ThresholdOtsu}, nil
	case "":
		return Threshold{}, errors.New("threshold is empty")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: want a number, mean or otsu", input)
	}
	if v < 0 || v > 1 || math.IsNaN(v) {
		return Threshold{}, fmt.Errorf("threshold %v out of range [0,1]", v)
	}
	return Threshold{Mode: ThresholdFixed, Value: v}, nil
}

// String returns the setting in the form ParseThreshold accepts
func (t Threshold) String() string {
	if t.Mode == ThresholdFixed || t.Mode == "" {
		return strconv.FormatFloat(t.Value, 'g', -1, 64)
	}
	return string(t.Mode)
}

// Resolve returns the luminance cut for r
func (t Threshold) Resolve(r *Raster) (float64, error) {
	switch t.Mode {
	case ThresholdFixed, "":
		return t.Value, nil
	case ThresholdMean:
		values := r.Values()
		if len(values) == 0 {
			return 0, ErrEmptyRaster
		}
		return stat.Mean(values, nil), nil
	case ThresholdOtsu:
		return otsu(r.Values())
	default:
		return 0, fmt.Errorf("unknown threshold mode %q", t.Mode)
	}
}

// otsu picks the histogram boundary that maximises between-class variance.
// A single-valued input has no boundary and falls back to the mean.
func otsu(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyRaster
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	dividers := floats.Span(make([]float64, otsuBins+1), 0, math.Nextafter(1, 2))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	total := float64(len(sorted))
	var sumAll float64
	for i, c := range counts {
		sumAll += float64(i) * c
	}

	var wB, sumB float64
	best, cut := -1.0, -1
	for i, c := range counts {
		wB += c
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * c
		mB := sumB / wB
		mF := (sumAll - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best, cut = between, i
		}
	}

	if cut < 0 {
		return stat.Mean(sorted, nil), nil
	}
	return dividers[cut+1], nil
}
