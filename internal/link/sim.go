package link

import (
	"bytes"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/msp"
)

// DriverSim selects the built-in simulated flight controller.
const DriverSim = "sim"

// Simulator is a Port that behaves like a MultiWii controller: it parses
// requests written to it and queues replies with smoothly changing values.
// It lets the bridge and probe run without hardware.
type Simulator struct {
	mu     sync.Mutex
	start  time.Time
	now    func() time.Time
	req    []byte
	rx     bytes.Buffer
	rc     [4]int16
	closed bool
}

// NewSimulator returns a simulator with centred sticks and idle throttle.
func NewSimulator() *Simulator {
	return &Simulator{
		start: time.Now(),
		now:   time.Now,
		rc:    [4]int16{1500, 1500, 1500, 1000},
	}
}

func (s *Simulator) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	s.req = append(s.req, b...)
	for {
		i := bytes.IndexByte(s.req, msp.Preamble0)
		if i < 0 {
			s.req = s.req[:0]
			return len(b), nil
		}
		s.req = s.req[i:]
		if len(s.req) < msp.HeaderSize {
			return len(b), nil
		}
		n := msp.Overhead + int(s.req[3])
		if len(s.req) < n {
			return len(b), nil
		}

		f, err := msp.Decode(s.req[:n])
		if err != nil {
			s.req = s.req[1:]
			continue
		}
		s.req = s.req[n:]
		if data, ok := s.reply(f); ok {
			s.rx.Write(msp.EncodeFrame(msp.Frame{
				Direction: msp.DirFromDevice,
				Command:   f.Command,
				Data:      data,
			}))
		}
	}
}

// Read returns queued reply bytes. With nothing queued it returns (0, nil),
// which the link treats as a read timeout.
func (s *Simulator) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.rx.Len() == 0 {
		return 0, nil
	}
	return s.rx.Read(b)
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Simulator) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx.Reset()
	return nil
}

func (s *Simulator) ResetOutputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = s.req[:0]
	return nil
}

// reply builds the payload for a request. Unsupported commands get no reply.
func (s *Simulator) reply(f msp.Frame) ([]byte, bool) {
	if f.Command == msp.CmdIdent {
		// version 2.4, quad X, MSP version 0, capability 0
		return []byte{240, 3, 0, 0, 0, 0, 0}, true
	}
	words, ok := s.replyWords(f)
	if !ok {
		return nil, false
	}
	return msp.WordBytes(words), true
}

func (s *Simulator) replyWords(f msp.Frame) ([]int16, bool) {
	t := s.now().Sub(s.start).Seconds()

	switch f.Command {
	case msp.CmdAttitude:
		roll := 20 * math.Sin(t)
		pitch := 15 * math.Cos(t*0.7)
		heading := math.Mod(t*30, 360)
		return []int16{int16(roll * 10), int16(pitch * 10), int16(heading)}, true

	case msp.CmdAltitude:
		alt := int32(150 + 50*math.Sin(t*0.2))
		vario := int16(10 * math.Cos(t*0.2))
		return []int16{int16(uint16(alt)), int16(uint16(uint32(alt) >> 16)), vario}, true

	case msp.CmdRawIMU:
		return []int16{
			int16(20 * math.Sin(t)), int16(15 * math.Cos(t*0.7)), 512,
			int16(20 * math.Cos(t)), int16(-10 * math.Sin(t*0.7)), 30,
			int16(200 * math.Cos(t*0.5)), int16(200 * math.Sin(t*0.5)), -400,
		}, true

	case msp.CmdRC:
		return []int16{s.rc[0], s.rc[1], s.rc[2], s.rc[3], 1500, 1500, 1500, 1500}, true

	case msp.CmdMotor:
		th := s.rc[3]
		return []int16{th, th, th, th}, true

	case msp.CmdServo:
		return []int16{1500, 1500, 1500, 1500}, true

	case msp.CmdPID:
		// P, I, D bytes for roll, pitch, yaw, then padding
		pid := []byte{33, 30, 23, 33, 30, 23, 68, 45, 0, 64, 25, 24}
		return msp.BytesWords(pid), true

	case msp.CmdAccCalibration, msp.CmdMagCalibration:
		return nil, true

	case msp.CmdSetRawRC:
		for i := 0; i < len(s.rc) && i < len(f.Payload); i++ {
			s.rc[i] = f.Payload[i]
		}
		return nil, true
	}
	return nil, false
}
