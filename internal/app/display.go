package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/msp_bridge/internal/config"
	"github.com/relabs-tech/msp_bridge/internal/drone"
)

// lineHeight matches basicfont.Face7x13; a 128x64 panel fits four lines.
const lineHeight = 13

// addrBus redirects every transaction to addr. The ssd1306 driver always
// talks to 0x3C; some panels are strapped to 0x3D.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// RunDisplay shows arming, attitude and altitude on an SSD1306 panel until
// ctx is cancelled.
func RunDisplay(ctx context.Context, cfg *config.Config, state *drone.State, status func() Status) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := drawLines(dev, []string{"MSP bridge", "Waiting for", "controller"}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return drawLines(dev, []string{"MSP bridge", "stopped"})
		case <-ticker.C:
		}

		if err := drawLines(dev, statusLines(state.Snapshot(), status())); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
}

// statusLines renders the panel text. Missing categories show "--".
func statusLines(snap drone.Snapshot, st Status) []string {
	var arm string
	switch {
	case st.ArmingState == "arming":
		arm = "ARMING"
	case st.ArmingState == "disarming":
		arm = "DISARMING"
	case snap.Armed:
		arm = "ARMED"
	default:
		arm = "DISARMED"
	}
	if st.Operator != "" {
		arm += " OP"
	}
	if st.TelemetryRunning {
		arm += " TLM"
	}

	lines := []string{arm, "R:  --  P:  --", "HDG: --", "ALT: --"}

	if s, ok := snap.Samples[drone.Attitude]; ok {
		f := s.Fields()
		lines[1] = fmt.Sprintf("R:%5.1f P:%5.1f", f["angx"], f["angy"])
		lines[2] = fmt.Sprintf("HDG: %3.0f", f["heading"])
	}
	if s, ok := snap.Samples[drone.Altitude]; ok {
		f := s.Fields()
		lines[3] = fmt.Sprintf("ALT: %.2fm", f["estalt"]/100)
	}
	return lines
}

func drawLines(dev *ssd1306.Dev, lines []string) error {
	img := image1bit.NewVerticalLSB(dev.Bounds())

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		drawer.Dot = fixed.P(0, (i+1)*lineHeight)
		drawer.DrawBytes([]byte(line))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
