package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/tendof"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var _ tendof.I2CBus = &GenericBus{}
var _ tendof.Transport = &GenericBus{}

// GenericBus is a Linux i2c-dev bus opened through periph.io.
type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus opens dev (e.g. "/dev/i2c-1" or "1"); an empty name picks the
// first bus available.
func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %q: %w", dev, err)
	}
	return &GenericBus{
		bus: bus,
	}, nil
}

// ReadRegisterByte selects register and reads it back using a repeated start.
func (b *GenericBus) ReadRegisterByte(ctx context.Context, address, register byte) (byte, error) {
	buf := []byte{0}
	err := b.bus.Tx(uint16(address), []byte{register}, buf)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#x of %#x: %w", register, address, err)
	}
	return buf[0], nil
}

func (b *GenericBus) WriteRegisterByte(ctx context.Context, address, register, value byte) error {
	err := b.bus.Tx(uint16(address), []byte{register, value}, nil)
	if err != nil {
		return fmt.Errorf("could not write register %#x of %#x: %w", register, address, err)
	}
	return nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// Bus exposes the underlying periph.io bus for drivers written against it.
// Callers must hold a transaction on the arbiter while using it.
func (b *GenericBus) Bus() i2c.Bus {
	return b.bus
}

// SetSpeed changes the bus clock where the driver allows it.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	return b.bus.SetSpeed(f)
}

// Release is a no-op; the kernel driver recovers the bus on its own.
func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
