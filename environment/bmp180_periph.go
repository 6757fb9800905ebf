package environment

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/mklimuk/tendof"
)

// ReadWithPeriph takes one reading with periph.io's bmxx80 driver on raw, the
// bus behind the shared one. The shared bus is held for the whole reading so
// the foreign driver never interleaves with other transactions.
func ReadWithPeriph(ctx context.Context, bus tendof.SharedBus, raw i2c.Bus, address byte) (float64, int32, error) {
	tx, err := bus.Begin(ctx, address)
	if err != nil {
		return 0, 0, fmt.Errorf("bmxx80: %w", err)
	}
	defer func() { _ = tx.End() }()
	dev, err := bmxx80.NewI2C(raw, uint16(address), &bmxx80.DefaultOpts)
	if err != nil {
		return 0, 0, fmt.Errorf("bmxx80: could not open device: %w", err)
	}
	defer func() { _ = dev.Halt() }()
	var env physic.Env
	if err := dev.Sense(&env); err != nil {
		return 0, 0, fmt.Errorf("bmxx80: could not sense: %w", err)
	}
	celsius := float64(env.Temperature-physic.ZeroCelsius) / float64(physic.Celsius)
	return celsius, int32(env.Pressure / physic.Pascal), nil
}
