package drone

import (
	"fmt"
	"time"
)

// Report is the JSON form of a Sample, suitable for MQTT and the web API.
type Report struct {
	Category  string             `json:"category"`
	Fields    map[string]float64 `json:"fields"`
	Raw       []int16            `json:"raw"`
	ElapsedMS float64            `json:"elapsed_ms"` // request latency
	Timestamp string             `json:"timestamp"`  // RFC3339Nano
}

// Report converts s for publishing.
func (s Sample) Report() Report {
	return Report{
		Category:  s.category.String(),
		Fields:    s.Fields(),
		Raw:       s.Raw(),
		ElapsedMS: float64(s.elapsed.Microseconds()) / 1000.0,
		Timestamp: s.timestamp.Format(time.RFC3339Nano),
	}
}

// ArmedReport is published whenever the armed flag changes.
type ArmedReport struct {
	Armed     bool   `json:"armed"`
	Timestamp string `json:"timestamp"`
}

// SampleFromReport rebuilds a Sample from its published form.
func SampleFromReport(r Report) (Sample, error) {
	c, err := ParseCategory(r.Category)
	if err != nil {
		return Sample{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return Sample{}, fmt.Errorf("report timestamp: %w", err)
	}
	elapsed := time.Duration(r.ElapsedMS * float64(time.Millisecond))
	return NewSample(c, r.Raw, elapsed, at)
}
