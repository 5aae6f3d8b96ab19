package app

import (
	"fmt"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/arming"
	"github.com/relabs-tech/msp_bridge/internal/bridge"
	"github.com/relabs-tech/msp_bridge/internal/config"
	"github.com/relabs-tech/msp_bridge/internal/link"
	"github.com/relabs-tech/msp_bridge/internal/relay"
	"github.com/relabs-tech/msp_bridge/internal/sampler"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// LinkOptions maps the serial keys onto link.Options.
func LinkOptions(cfg *config.Config) link.Options {
	return link.Options{
		PortName:    cfg.SerialPort,
		BaudRate:    cfg.SerialBaudRate,
		Driver:      cfg.SerialDriver,
		ReadTimeout: ms(cfg.SerialReadTimeoutMS),
		Wakeup:      ms(cfg.SerialWakeupMS),
	}
}

// ArmingConfig maps the ARM_* keys onto arming.Config.
func ArmingConfig(cfg *config.Config) arming.Config {
	return arming.Config{
		UseYaw:       cfg.ArmUseYaw,
		UseRoll:      cfg.ArmUseRoll,
		MinYaw:       cfg.ArmMinYaw,
		MaxYaw:       cfg.ArmMaxYaw,
		MinRoll:      cfg.ArmMinRoll,
		MaxRoll:      cfg.ArmMaxRoll,
		MinThrottle:  cfg.ArmMinThrottle,
		Hold:         ms(cfg.ArmHoldMS),
		SendInterval: ms(cfg.ArmSendIntervalMS),
	}
}

// SamplerOptions maps the telemetry keys onto sampler.Options.
func SamplerOptions(cfg *config.Config, sinks ...sampler.Sink) sampler.Options {
	return sampler.Options{
		Categories: cfg.EnabledCategories(),
		Interval:   ms(cfg.TelemetryIntervalMS),
		Sinks:      sinks,
	}
}

// DispatcherOptions builds the relay codecs and code table.
func DispatcherOptions(cfg *config.Config) (bridge.Options, error) {
	in, err := relay.NewCodec(cfg.RelayInboundOrder)
	if err != nil {
		return bridge.Options{}, fmt.Errorf("inbound codec: %w", err)
	}
	out, err := relay.NewCodec(cfg.RelayOutboundOrder)
	if err != nil {
		return bridge.Options{}, fmt.Errorf("outbound codec: %w", err)
	}
	return bridge.Options{Inbound: in, Outbound: out, Codes: cfg.Codes.Clone()}, nil
}
