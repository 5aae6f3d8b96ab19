package app

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/arming"
	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/link"
	"github.com/relabs-tech/msp_bridge/internal/msp"
	"github.com/relabs-tech/msp_bridge/internal/sampler"
)

// orderedPort answers every request and records the command order. A request
// written while an earlier reply is still unread marks the exchanges as
// interleaved.
type orderedPort struct {
	mu       sync.Mutex
	rx       bytes.Buffer
	awaiting bool
	overlap  bool
	cmds     []byte
}

func (p *orderedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := msp.Decode(b)
	if err != nil {
		return 0, err
	}
	if p.awaiting {
		p.overlap = true
	}
	p.awaiting = true
	p.cmds = append(p.cmds, f.Command)

	var words []int16
	if f.Command == msp.CmdAltitude {
		words = []int16{120, 0, 3}
	}
	p.rx.Write(msp.EncodeFrame(msp.Frame{Direction: msp.DirFromDevice, Command: f.Command, Payload: words}))
	return len(b), nil
}

func (p *orderedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rx.Len() == 0 {
		return 0, nil
	}
	n, err := p.rx.Read(b[:1])
	if p.rx.Len() == 0 {
		p.awaiting = false
	}
	return n, err
}

func (p *orderedPort) Close() error { return nil }

func (p *orderedPort) commands() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.cmds...)
}

// yieldingClock advances instantly but yields so the sampler gets the link
// between stick sends.
type yieldingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *yieldingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *yieldingClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	time.Sleep(100 * time.Microsecond)
}

func TestSamplerAndArmingShareLink(t *testing.T) {
	port := &orderedPort{}
	lnk := link.New(port)
	st := drone.NewState()

	smp := sampler.New(lnk, st, sampler.Options{
		Categories: []drone.Category{drone.Altitude},
		Interval:   time.Millisecond,
	})
	m := arming.New(lnk, st, arming.DefaultConfig(), &yieldingClock{now: time.Unix(0, 0)})

	if err := smp.Start(nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Arm(); err != nil {
		t.Fatalf("Arm() error = %v", err)
	}
	smp.Stop()

	if port.overlap {
		t.Fatal("a request was written before the previous reply was read")
	}
	var rc, alt int
	for _, cmd := range port.commands() {
		switch cmd {
		case msp.CmdSetRawRC:
			rc++
		case msp.CmdAltitude:
			alt++
		default:
			t.Errorf("unexpected command %d", cmd)
		}
	}
	if rc != 125 {
		t.Errorf("stick sends = %d, want 125", rc)
	}
	if alt == 0 {
		t.Error("sampler made no requests during the hold")
	}
	if !st.Armed() || m.State() != arming.Armed {
		t.Errorf("armed = %v, state = %v", st.Armed(), m.State())
	}
	if _, ok := st.Get(drone.Altitude); !ok {
		t.Error("no altitude sample stored")
	}
}
