// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drone

import (
	"sync"
	"testing"
	"time"
)

func TestRawIMUFields(t *testing.T) {
	s, err := NewSample(RawIMU, []int16{1, 2, 3, 4, 5, 6, 7, 8, 9}, 3*time.Millisecond, time.Now())
	if err != nil {
		t.Fatalf("NewSample() error = %v", err)
	}

	want := map[string]float64{
		"accx": 1, "accy": 2, "accz": 3,
		"gyrx": 4, "gyry": 5, "gyrz": 6,
		"magx": 7, "magy": 8, "magz": 9,
	}
	got := s.Fields()
	if len(got) != len(want) {
		t.Fatalf("Fields() has %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Fields()[%q] = %v, want %v", k, got[k], v)
		}
	}
}

func TestCategoryDecoding(t *testing.T) {
	tests := []struct {
		name  string
		cat   Category
		words []int16
		want  map[string]float64
		relay []int16
	}{
		{
			name:  "attitude tenths of degree",
			cat:   Attitude,
			words: []int16{125, -40, 270},
			want:  map[string]float64{"angx": 12.5, "angy": -4, "heading": 270},
			relay: []int16{125, -40, 270},
		},
		{
			name:  "altitude int32 estalt with vario",
			cat:   Altitude,
			words: []int16{0x1170, 0x0001, -12}, // 0x00011170 = 70000 cm
			want:  map[string]float64{"estalt": 70000, "vario": -12},
			relay: []int16{32767, -12},
		},
		{
			name:  "altitude without vario",
			cat:   Altitude,
			words: []int16{-100, -1},
			want:  map[string]float64{"estalt": -100, "vario": 0},
			relay: []int16{-100, 0},
		},
		{
			name:  "rc uses first four channels",
			cat:   RC,
			words: []int16{1500, 1501, 1502, 1000, 1100, 1200, 1300, 1400},
			want:  map[string]float64{"roll": 1500, "pitch": 1501, "yaw": 1502, "throttle": 1000},
			relay: []int16{1500, 1501, 1502, 1000},
		},
		{
			name:  "motor",
			cat:   Motor,
			words: []int16{1100, 1200, 1300, 1400, 0, 0, 0, 0},
			want:  map[string]float64{"m1": 1100, "m2": 1200, "m3": 1300, "m4": 1400},
			relay: []int16{1100, 1200, 1300, 1400},
		},
		{
			name: "pid bytes",
			cat:  PIDCoef,
			// bytes: 33 30 23 | 33 30 23 | 68 0 45 | 0
			words: []int16{0x1E21, 0x2117, 0x171E, 0x0044, 0x002D},
			want: map[string]float64{
				"rp": 0x21, "ri": 0x1E, "rd": 0x17,
				"pp": 0x21, "pi": 0x1E, "pd": 0x17,
				"yp": 0x44, "yi": 0x00, "yd": 0x2D,
			},
			relay: []int16{0x21, 0x1E, 0x17, 0x21, 0x1E, 0x17, 0x44, 0x00, 0x2D},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSample(tt.cat, tt.words, 0, time.Time{})
			if err != nil {
				t.Fatalf("NewSample() error = %v", err)
			}
			got := s.Fields()
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Fields()[%q] = %v, want %v", k, got[k], v)
				}
			}
			relay := s.RelayWords()
			if len(relay) != len(tt.relay) {
				t.Fatalf("RelayWords() = %v, want %v", relay, tt.relay)
			}
			for i := range relay {
				if relay[i] != tt.relay[i] {
					t.Errorf("RelayWords()[%d] = %d, want %d", i, relay[i], tt.relay[i])
				}
			}
		})
	}
}

func TestNewSampleRejectsShortPayload(t *testing.T) {
	if _, err := NewSample(RawIMU, []int16{1, 2, 3}, 0, time.Time{}); err == nil {
		t.Fatal("NewSample() with 3 words for raw_imu: expected error")
	}
	if _, err := NewSample(Category(42), nil, 0, time.Time{}); err == nil {
		t.Fatal("NewSample() with invalid category: expected error")
	}
}

func TestSampleIsImmutable(t *testing.T) {
	words := []int16{1, 2, 3}
	s, err := NewSample(Attitude, words, 0, time.Time{})
	if err != nil {
		t.Fatalf("NewSample() error = %v", err)
	}
	words[0] = 99
	raw := s.Raw()
	raw[1] = 99

	if got := s.Raw(); got[0] != 1 || got[1] != 2 {
		t.Errorf("Raw() = %v, sample was modified through caller slices", got)
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"altitude": Altitude,
		"Attitude": Attitude,
		"raw-imu":  RawIMU,
		"rawimu":   RawIMU,
		"rc":       RC,
		"motor":    Motor,
		"servo":    Servo,
		"pid":      PIDCoef,
	}
	for in, want := range tests {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Errorf("ParseCategory(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseCategory("camera"); err == nil {
		t.Error("ParseCategory(camera): expected error")
	}
}

func TestStateSetGet(t *testing.T) {
	st := NewState()
	if _, ok := st.Get(Attitude); ok {
		t.Fatal("Get() on empty state returned a sample")
	}

	s, _ := NewSample(Attitude, []int16{10, 20, 30}, 0, time.Now())
	st.Set(s)

	got, ok := st.Get(Attitude)
	if !ok {
		t.Fatal("Get() after Set() found nothing")
	}
	if v, _ := got.Field("angy"); v != 2 {
		t.Errorf("angy = %v, want 2", v)
	}

	snap := st.Snapshot()
	if len(snap.Samples) != 1 || snap.Armed {
		t.Errorf("Snapshot() = %+v, want one sample and disarmed", snap)
	}
}

func TestStateArmedWatchers(t *testing.T) {
	st := NewState()
	var calls []bool
	st.OnArmedChange(func(armed bool) { calls = append(calls, armed) })

	st.SetArmed(true)
	st.SetArmed(true)
	st.SetArmed(false)

	if len(calls) != 2 || !calls[0] || calls[1] {
		t.Errorf("watcher calls = %v, want [true false]", calls)
	}
	if st.Armed() {
		t.Error("Armed() = true after SetArmed(false)")
	}
}

// Readers must only ever see whole samples written by the writer.
func TestStateConcurrentReplace(t *testing.T) {
	st := NewState()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int16(0); i < 2000; i++ {
			s, _ := NewSample(RC, []int16{i, i, i, i}, 0, time.Time{})
			st.Set(s)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				s, ok := st.Get(RC)
				if !ok {
					continue
				}
				raw := s.Raw()
				for _, w := range raw[1:] {
					if w != raw[0] {
						t.Errorf("torn sample: %v", raw)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestSampleFromReport(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	s, err := NewSample(Attitude, []int16{125, -40, 270}, 4*time.Millisecond, at)
	if err != nil {
		t.Fatal(err)
	}

	got, err := SampleFromReport(s.Report())
	if err != nil {
		t.Fatalf("SampleFromReport() error = %v", err)
	}
	if got.Category() != Attitude || !got.Timestamp().Equal(at) || got.Elapsed() != 4*time.Millisecond {
		t.Errorf("got %v at %v after %v", got.Category(), got.Timestamp(), got.Elapsed())
	}
	if v, _ := got.Field("angx"); v != 12.5 {
		t.Errorf("angx = %v, want 12.5", v)
	}

	if _, err := SampleFromReport(Report{Category: "gps", Timestamp: at.Format(time.RFC3339Nano)}); err == nil {
		t.Error("unknown category: expected error")
	}
	if _, err := SampleFromReport(Report{Category: "attitude", Raw: []int16{1, 2, 3}, Timestamp: "yesterday"}); err == nil {
		t.Error("bad timestamp: expected error")
	}
}
