package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	"github.com/relabs-tech/msp_bridge/internal/app"
	"github.com/relabs-tech/msp_bridge/internal/arming"
	"github.com/relabs-tech/msp_bridge/internal/config"
	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/link"
	"github.com/relabs-tech/msp_bridge/internal/msp"
	"github.com/relabs-tech/msp_bridge/internal/relay"
	"github.com/relabs-tech/msp_bridge/internal/sampler"
)

var COMMANDS = []cli.Command{
	{
		Name:      "read",
		Usage:     "Read one telemetry category and print it",
		ArgsUsage: "<altitude|attitude|raw_imu|rc|motor|servo|pid>",
		Action:    readCommand,
	},
	{
		Name:      "set-rc",
		Usage:     "Override the four primary RC channels once, then read them back",
		ArgsUsage: "<roll> <pitch> <yaw> <throttle>",
		Action:    setRCCommand,
	},
	{
		Name:   "arm",
		Usage:  "Run the arming stick sequence",
		Action: armCommand,
	},
	{
		Name:   "disarm",
		Usage:  "Run the disarming stick sequence",
		Action: disarmCommand,
	},
	{
		Name:  "watch",
		Usage: "Sample the enabled categories locally and print the drone state",
		Flags: []cli.Flag{
			cli.DurationFlag{
				Name:  "duration, d",
				Value: 10 * time.Second,
				Usage: "how long to sample",
			},
		},
		Action: watchCommand,
	},
	{
		Name:  "motors",
		Usage: "Arm, ramp every stick from 1000 towards 2000, then disarm. PROPS OFF.",
		Flags: []cli.Flag{
			cli.DurationFlag{
				Name:  "duration, d",
				Value: 5 * time.Second,
				Usage: "length of the ramp",
			},
			cli.IntFlag{
				Name:  "step",
				Value: 2,
				Usage: "increment per override",
			},
		},
		Action: motorsCommand,
	},
	{
		Name:      "calibrate",
		Usage:     "Start the controller's accelerometer or magnetometer calibration",
		ArgsUsage: "<acc|mag>",
		Action:    calibrateCommand,
	},
	{
		Name:  "listen",
		Usage: "Act as the operator: connect to a bridge, start telemetry and print what arrives",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "bridge, b",
				Value: "127.0.0.1:4445",
				Usage: "bridge relay address",
			},
			cli.DurationFlag{
				Name:  "duration, d",
				Value: 10 * time.Second,
				Usage: "how long to listen",
			},
		},
		Action: listenCommand,
	},
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.InitGlobal(c.GlobalString("config")); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := *config.Get()
	if ms := c.GlobalInt("wakeup"); ms >= 0 {
		cfg.SerialWakeupMS = ms
	}
	return &cfg, nil
}

func openLink(c *cli.Context) (*link.Link, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	lnk, err := link.Open(ctx, app.LinkOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return lnk, cfg, nil
}

func printSample(s drone.Sample) {
	fmt.Printf("-----%s-----\n", s.Category())
	for _, name := range s.Category().Fields() {
		v, _ := s.Field(name)
		fmt.Printf("%-8s %g\n", name+":", v)
	}
	fmt.Printf("%-8s %s\n", "elapsed:", humanize.SIWithDigits(s.Elapsed().Seconds(), 2, "s"))
	fmt.Printf("%-8s %s\n\n", "at:", s.Timestamp().Format(time.RFC3339Nano))
}

func calibrateCommand(c *cli.Context) error {
	var cmd byte
	var hint string
	switch c.Args().First() {
	case "acc":
		cmd = msp.CmdAccCalibration
		hint = "keep the craft level and still"
	case "mag":
		cmd = msp.CmdMagCalibration
		hint = "rotate the craft through every axis for about 30 s"
	default:
		return cli.NewExitError("calibrate needs acc or mag", 2)
	}

	lnk, _, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()

	if _, err := lnk.Exchange(cmd, nil); err != nil {
		return fmt.Errorf("%s calibration: %w", c.Args().First(), err)
	}
	fmt.Printf("%s calibration started: %s\n", c.Args().First(), hint)
	return nil
}

func readCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("read needs exactly one category", 2)
	}
	cat, err := drone.ParseCategory(c.Args().First())
	if err != nil {
		return err
	}

	lnk, _, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()

	s, err := sampler.New(lnk, drone.NewState(), sampler.Options{}).Sample(cat)
	if err != nil {
		return err
	}
	printSample(s)
	return nil
}

func setRCCommand(c *cli.Context) error {
	if c.NArg() != 4 {
		return cli.NewExitError("set-rc needs roll pitch yaw throttle", 2)
	}
	var words [4]int16
	for i, arg := range c.Args() {
		v, err := strconv.ParseInt(arg, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid channel value %q: %w", arg, err)
		}
		words[i] = int16(v)
	}
	in, _ := drone.ControlInputFromWords(words[:])

	lnk, _, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()

	if err := lnk.SetRawRC(in); err != nil {
		return err
	}
	s, err := sampler.New(lnk, drone.NewState(), sampler.Options{}).Sample(drone.RC)
	if err != nil {
		return err
	}
	printSample(s)
	return nil
}

func newMachine(lnk *link.Link, cfg *config.Config, st *drone.State) *arming.Machine {
	return arming.New(lnk, st, app.ArmingConfig(cfg), nil)
}

func armCommand(c *cli.Context) error {
	lnk, cfg, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()
	return newMachine(lnk, cfg, drone.NewState()).Arm()
}

func disarmCommand(c *cli.Context) error {
	lnk, cfg, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()

	// A fresh machine believes it is disarmed, so mark it armed first to
	// force the full disarming hold.
	st := drone.NewState()
	m := newMachine(lnk, cfg, st)
	m.Assume(arming.Armed)
	return m.Disarm()
}

func watchCommand(c *cli.Context) error {
	lnk, cfg, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()

	st := drone.NewState()
	s := sampler.New(lnk, st, app.SamplerOptions(cfg))
	if err := s.Start(nil); err != nil {
		return err
	}
	defer s.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(time.Duration(cfg.TelemetryIntervalMS) * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(c.Duration("duration"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			return nil
		case <-ticker.C:
		}
		snap := st.Snapshot()
		cats := make([]drone.Category, 0, len(snap.Samples))
		for cat := range snap.Samples {
			cats = append(cats, cat)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
		for _, cat := range cats {
			printSample(snap.Samples[cat])
		}
	}
}

func motorsCommand(c *cli.Context) error {
	lnk, cfg, err := openLink(c)
	if err != nil {
		return err
	}
	defer lnk.Close()

	m := newMachine(lnk, cfg, drone.NewState())
	if err := m.Arm(); err != nil {
		log.Printf("probe: arm: %v", err)
	}
	defer func() {
		if err := m.Disarm(); err != nil {
			log.Printf("probe: disarm: %v", err)
		}
	}()

	step := int16(c.Int("step"))
	in := drone.ControlInput{Roll: 1000, Pitch: 1000, Yaw: 1000, Throttle: 1000}
	interval := time.Duration(cfg.ArmSendIntervalMS) * time.Millisecond
	end := time.Now().Add(c.Duration("duration"))
	sent := 0

	for time.Now().Before(end) {
		if err := lnk.SetRawRC(in); err != nil {
			log.Printf("probe: set rc: %v", err)
		}
		sent++
		if in.Throttle < 2000 {
			in.Roll += step
			in.Pitch += step
			in.Yaw += step
			in.Throttle += step
		}
		time.Sleep(interval)
	}
	fmt.Printf("sent %s overrides, final %+v\n", humanize.Comma(int64(sent)), in)
	return nil
}

func listenCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := app.DispatcherOptions(cfg)
	if err != nil {
		return err
	}

	bridgeAddr, err := net.ResolveUDPAddr("udp", c.String("bridge"))
	if err != nil {
		return err
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return err
	}
	defer conn.Close()

	send := func(code int16) error {
		_, err := conn.WriteTo(opts.Inbound.Encode(relay.Frame{Code: code}), bridgeAddr)
		return err
	}
	if err := send(opts.Codes.StartConnection); err != nil {
		return err
	}
	if err := send(opts.Codes.StartTelemetry); err != nil {
		return err
	}
	defer send(opts.Codes.EndConnection)
	defer send(opts.Codes.EndTelemetry)

	names := map[int16]string{
		opts.Codes.AcceptConnection: "accept_connection",
		opts.Codes.StartTelemetry:   "start_telemetry",
	}
	for cat, code := range opts.Codes.Telemetry {
		names[code] = cat.String()
	}

	var frames, bytes uint64
	buf := make([]byte, 512)
	end := time.Now().Add(c.Duration("duration"))
	for time.Now().Before(end) {
		conn.SetReadDeadline(end)
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return err
		}
		frames++
		bytes += uint64(n)

		f, err := opts.Outbound.Decode(buf[:n])
		if err != nil {
			log.Printf("probe: %v", err)
			continue
		}
		name, ok := names[f.Code]
		if !ok {
			name = "code " + strconv.Itoa(int(f.Code))
		}
		fmt.Printf("%-18s size=%-3d %v\n", name, 2*len(f.Payload), f.Payload)
	}

	fmt.Printf("received %s frames (%s)\n", humanize.Comma(int64(frames)), humanize.Bytes(bytes))
	return nil
}
