package environment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/tendof"
)

const (
	bmp180RegChipID  = 0xD0
	bmp180RegControl = 0xF4
	bmp180RegData    = 0xF6

	bmp180CmdTemperature = 0x2E
	bmp180CmdPressure    = 0x34

	bmp180ChipID = 0x55
)

// ErrDeviceNotPresent means nothing answered at the configured address or the
// device there is not a BMP180.
var ErrDeviceNotPresent = errors.New("device not present")

// RawSource delivers uncompensated BMP180 readings. The hardware source talks
// to the bus; FixedRawSource and RawSourceFunc stand in for it in test mode.
type RawSource interface {
	RawTemperature(ctx context.Context) (int32, error)
	RawPressure(ctx context.Context, mode Oversampling) (int32, error)
}

// FixedRawSource always returns the same raw values.
type FixedRawSource struct {
	UT int32
	UP int32
}

func (s FixedRawSource) RawTemperature(context.Context) (int32, error) {
	return s.UT, nil
}

func (s FixedRawSource) RawPressure(context.Context, Oversampling) (int32, error) {
	return s.UP, nil
}

// RawSourceFunc produces raw readings with behavior functions; a nil function
// yields zero.
//
// Example usage:
//
//	src := RawSourceFunc{Pressure: func(ctx context.Context, mode Oversampling) (int32, error) { return 0, errBroken }}
type RawSourceFunc struct {
	Temperature func(ctx context.Context) (int32, error)
	Pressure    func(ctx context.Context, mode Oversampling) (int32, error)
}

func (s RawSourceFunc) RawTemperature(ctx context.Context) (int32, error) {
	if s.Temperature == nil {
		return 0, nil
	}
	return s.Temperature(ctx)
}

func (s RawSourceFunc) RawPressure(ctx context.Context, mode Oversampling) (int32, error) {
	if s.Pressure == nil {
		return 0, nil
	}
	return s.Pressure(ctx, mode)
}

// busSource starts conversions on a real device. Every conversion is a single
// transaction: the bus is held from the start command until the result is read.
type busSource struct {
	bus     tendof.SharedBus
	address byte
	settle  time.Duration
	wait    func(ctx context.Context, d time.Duration) error
}

func (s *busSource) RawTemperature(ctx context.Context) (int32, error) {
	tx, err := s.bus.Begin(ctx, s.address)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.End() }()
	if err := tx.WriteByteData(ctx, bmp180RegControl, bmp180CmdTemperature); err != nil {
		return 0, fmt.Errorf("could not start temperature conversion: %w", err)
	}
	if err := s.wait(ctx, s.settle); err != nil {
		return 0, err
	}
	ut, err := tx.ReadWordData(ctx, bmp180RegData, false)
	if err != nil {
		return 0, fmt.Errorf("could not read temperature: %w", err)
	}
	return int32(ut), nil
}

func (s *busSource) RawPressure(ctx context.Context, mode Oversampling) (int32, error) {
	tx, err := s.bus.Begin(ctx, s.address)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.End() }()
	if err := tx.WriteByteData(ctx, bmp180RegControl, bmp180CmdPressure+byte(mode)<<6); err != nil {
		return 0, fmt.Errorf("could not start pressure conversion: %w", err)
	}
	if err := s.wait(ctx, mode.Settle()); err != nil {
		return 0, err
	}
	var data [3]byte
	for i := range data {
		data[i], err = tx.ReadByteData(ctx, bmp180RegData+byte(i))
		if err != nil {
			return 0, fmt.Errorf("could not read pressure: %w", err)
		}
	}
	return ComposeRawPressure(data[0], data[1], data[2], mode), nil
}

// ChipID reads the identification register of the device at address; a BMP180
// answers 0x55.
func ChipID(ctx context.Context, bus tendof.SharedBus, address byte) (byte, error) {
	tx, err := bus.Begin(ctx, address)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.End() }()
	return tx.ReadByteData(ctx, bmp180RegChipID)
}

// probe fails with ErrDeviceNotPresent unless a BMP180 answers at address.
// Arbitration errors are returned unchanged.
func probe(ctx context.Context, bus tendof.SharedBus, address byte) error {
	id, err := ChipID(ctx, bus, address)
	if errors.Is(err, tendof.ErrTransport) {
		return fmt.Errorf("bmp180: %w at %#x: %w", ErrDeviceNotPresent, address, err)
	}
	if err != nil {
		return fmt.Errorf("bmp180: could not read chip id: %w", err)
	}
	if id != bmp180ChipID {
		return fmt.Errorf("bmp180: %w at %#x: unexpected chip id %#x", ErrDeviceNotPresent, address, id)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
