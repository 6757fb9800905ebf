package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/adapter"
	"github.com/mklimuk/tendof/cmd/sensors/console"
	"github.com/mklimuk/tendof/config"
	"github.com/mklimuk/tendof/i2c"
	"github.com/mklimuk/tendof/sim"
	"github.com/mklimuk/tendof/snsctx"
)

// session is an opened adapter with the arbiter every command shares.
type session struct {
	cfg     config.Config
	bus     *i2c.Arbiter
	generic *i2c.GenericBus
	closers []func() error
}

// settings loads the configuration file and applies the global flags on top.
func settings(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	var cfg config.Config
	var err error
	if c.IsSet("config") {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return cfg, console.Fail("configuration error", err)
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("index") {
		cfg.MCP2221Index = c.Int("index")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, console.Fail("configuration error", err)
	}
	return cfg, nil
}

func commandContext(c *cli.Context) context.Context {
	return snsctx.SetVerbose(c.Context, c.Bool("verbose"))
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := settings(c)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	transport, err := s.openTransport()
	if err != nil {
		s.Close()
		return nil, console.Fail("adapter initialization error", err)
	}
	s.bus = i2c.NewArbiter(transport, i2c.WithTimeout(cfg.ArbitrationTimeout))
	slog.Debug("bus ready", "adapter", cfg.Adapter, "timeout", cfg.ArbitrationTimeout)
	return s, nil
}

func (s *session) openTransport() (tendof.Transport, error) {
	switch s.cfg.Adapter {
	case config.AdapterGeneric:
		bus, err := i2c.NewGenericBus(s.cfg.Device)
		if err != nil {
			return nil, err
		}
		s.generic = bus
		s.closers = append(s.closers, bus.Close)
		if speed := s.cfg.BusSpeed(); speed > 0 {
			if err := bus.SetSpeed(speed); err != nil {
				return nil, fmt.Errorf("could not set bus speed to %s: %w", speed, err)
			}
		}
		return bus, nil
	case config.AdapterMCP2221:
		mcp := adapter.NewMCP2221(adapter.WithDeviceIndex(s.cfg.MCP2221Index))
		return i2c.NewRegisterTransport(mcp, s.cfg.RetryLimit), nil
	case config.AdapterNanoPi:
		a := nanopi.NewNeoAdaptor()
		if err := a.Connect(); err != nil {
			return nil, fmt.Errorf("could not connect nanopi adaptor: %w", err)
		}
		bus := i2c.NewGobotBus(a, s.cfg.GobotBus)
		s.closers = append(s.closers, a.Finalize, bus.Close)
		return bus, nil
	case config.AdapterRaspi:
		a := raspi.NewAdaptor()
		if err := a.Connect(); err != nil {
			return nil, fmt.Errorf("could not connect raspi adaptor: %w", err)
		}
		bus := i2c.NewGobotBus(a, s.cfg.GobotBus)
		s.closers = append(s.closers, a.Finalize, bus.Close)
		return bus, nil
	case config.AdapterSim:
		return sim.NewBoard(), nil
	}
	return nil, fmt.Errorf("%w: unknown adapter %q", tendof.ErrInvalidConfiguration, s.cfg.Adapter)
}

// Close releases the adapter, most recently opened resource first.
func (s *session) Close() {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("could not close adapter", "error", err)
	}
}
