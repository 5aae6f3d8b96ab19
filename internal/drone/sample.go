// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drone

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/msp"
)

// Sample is one decoded telemetry reading. It is never modified after
// NewSample returns; accessors hand out copies.
type Sample struct {
	category  Category
	raw       []int16
	elapsed   time.Duration
	timestamp time.Time
}

// NewSample validates a response payload against the category layout.
func NewSample(c Category, words []int16, elapsed time.Duration, at time.Time) (Sample, error) {
	if !c.Valid() {
		return Sample{}, fmt.Errorf("invalid category %d", int(c))
	}
	if len(words) < c.MinWords() {
		return Sample{}, fmt.Errorf("%s payload: got %d words, need %d", c, len(words), c.MinWords())
	}
	return Sample{
		category:  c,
		raw:       append([]int16(nil), words...),
		elapsed:   elapsed,
		timestamp: at,
	}, nil
}

func (s Sample) Category() Category { return s.category }

// Elapsed is the request/response latency of the exchange that produced s.
func (s Sample) Elapsed() time.Duration { return s.elapsed }

func (s Sample) Timestamp() time.Time { return s.timestamp }

// Raw returns the response payload words.
func (s Sample) Raw() []int16 { return append([]int16(nil), s.raw...) }

// Values returns the decoded fields in Category.Fields order.
func (s Sample) Values() []float64 {
	w := s.raw
	switch s.category {
	case Altitude:
		// EstAlt is an int32 in cm, vario an int16 in cm/s. Older firmware omits vario.
		estalt := int32(uint32(uint16(w[0])) | uint32(uint16(w[1]))<<16)
		var vario int16
		if len(w) > 2 {
			vario = w[2]
		}
		return []float64{float64(estalt), float64(vario)}
	case Attitude:
		return []float64{float64(w[0]) / 10.0, float64(w[1]) / 10.0, float64(w[2])}
	case PIDCoef:
		b := msp.WordBytes(w)
		out := make([]float64, 9)
		for i := range out {
			out[i] = float64(b[i])
		}
		return out
	default:
		n := len(s.category.Fields())
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = float64(w[i])
		}
		return out
	}
}

// Fields maps field name to decoded value.
func (s Sample) Fields() map[string]float64 {
	names := s.category.Fields()
	vals := s.Values()
	out := make(map[string]float64, len(names))
	for i, n := range names {
		out[n] = vals[i]
	}
	return out
}

// Field returns a single decoded value.
func (s Sample) Field(name string) (float64, bool) {
	v, ok := s.Fields()[name]
	return v, ok
}

// RelayWords returns the 16-bit values forwarded to the operator for this
// sample. Attitude keeps the device's tenth-of-degree words; altitude is
// saturated to int16.
func (s Sample) RelayWords() []int16 {
	switch s.category {
	case Altitude:
		v := s.Values()
		return []int16{saturate(v[0]), int16(v[1])}
	case Attitude:
		return append([]int16(nil), s.raw[:3]...)
	default:
		v := s.Values()
		out := make([]int16, len(v))
		for i, f := range v {
			out[i] = int16(f)
		}
		return out
	}
}

func saturate(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
