package environment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/i2c"
	"github.com/mklimuk/tendof/sim"
)

func newSimBMP180(t *testing.T, opts ...BMP180Opt) (*BMP180, *sim.Bus) {
	t.Helper()
	bus := sim.NewBoard()
	opts = append([]BMP180Opt{WithTemperatureSettle(0)}, opts...)
	s, err := NewBMP180(context.Background(), i2c.NewArbiter(bus), opts...)
	require.NoError(t, err)
	return s, bus
}

func TestBMP180_AcquireCalibration(t *testing.T) {
	s, _ := newSimBMP180(t)
	assert.Equal(t, DefaultCalibration(), s.Calibration())
}

func TestBMP180_ErasedCalibration(t *testing.T) {
	bus := sim.NewBoard()
	bus.Device(sim.BMP180Address).Set(0xAA+8, 0xFF, 0xFF)
	_, err := NewBMP180(context.Background(), i2c.NewArbiter(bus))
	assert.ErrorIs(t, err, ErrInvalidCalibration)
}

func TestBMP180_Read(t *testing.T) {
	s, bus := newSimBMP180(t)
	ctx := context.Background()

	m, err := s.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, m.Temperature, 1e-9)
	assert.Equal(t, int32(69964), m.Pressure)
	assert.Equal(t, UltraLowPower, m.Mode)

	// temperature conversion is always started before the pressure one
	var starts []byte
	for _, op := range bus.Ops() {
		if op.Write && op.Address == sim.BMP180Address && op.Register == 0xF4 {
			starts = append(starts, op.Value)
		}
	}
	assert.Equal(t, []byte{0x2E, 0x34}, starts)
}

func TestBMP180_ReadTemperatureCelsius(t *testing.T) {
	s, _ := newSimBMP180(t)
	c, err := s.ReadTemperatureCelsius(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 15.0, c, 1e-9)
}

func TestBMP180_OversamplingOnTheWire(t *testing.T) {
	s, bus := newSimBMP180(t)
	ctx := context.Background()
	require.NoError(t, s.SetOversampling(Standard))
	assert.Equal(t, Standard, s.Oversampling())
	assert.ErrorIs(t, s.SetOversampling(Oversampling(7)), tendof.ErrInvalidConfiguration)

	p, err := s.ReadPressurePascals(ctx)
	require.NoError(t, err)
	assert.Equal(t, mustPressure(t, 27898, 23843, Standard), p)

	ops := bus.Ops()
	var last sim.Op
	for _, op := range ops {
		if op.Write && op.Register == 0xF4 {
			last = op
		}
	}
	assert.Equal(t, byte(0x34|1<<6), last.Value)
}

func mustPressure(t *testing.T, ut, up int32, mode Oversampling) int32 {
	t.Helper()
	cal := DefaultCalibration()
	temp, err := CompensateTemperature(cal, ut)
	require.NoError(t, err)
	p, err := CompensatePressure(cal, temp, up, mode)
	require.NoError(t, err)
	return p.Pascals
}

func TestBMP180_TestMode(t *testing.T) {
	s, err := NewBMP180(context.Background(), nil, WithTestMode(27898, 23843))
	require.NoError(t, err)
	m, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(69964), m.Pressure)
	assert.InDelta(t, 15.0, m.Temperature, 1e-9)
}

func TestBMP180_RequiresBus(t *testing.T) {
	_, err := NewBMP180(context.Background(), nil, WithCalibration(DefaultCalibration()))
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
	_, err = NewBMP180(context.Background(), nil, WithTestMode(0, 0), WithOversampling(Oversampling(9)))
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
}

func TestBMP180_FreshTemperatureEveryCycle(t *testing.T) {
	var mx sync.Mutex
	ut := int32(27898)
	var temperatures int
	src := RawSourceFunc{
		Temperature: func(ctx context.Context) (int32, error) {
			mx.Lock()
			defer mx.Unlock()
			temperatures++
			return ut, nil
		},
		Pressure: func(ctx context.Context, mode Oversampling) (int32, error) {
			return 23843, nil
		},
	}
	s, err := NewBMP180(context.Background(), nil, WithCalibration(DefaultCalibration()), WithRawSource(src))
	require.NoError(t, err)

	p, err := s.ReadPressurePascals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(69964), p)

	mx.Lock()
	ut = 20000
	mx.Unlock()
	p, err = s.ReadPressurePascals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1678007), p)
	assert.Equal(t, 2, temperatures)
}

func TestBMP180_FailureAsUnit(t *testing.T) {
	broken := errors.New("broken")
	src := RawSourceFunc{
		Temperature: func(ctx context.Context) (int32, error) { return 27898, nil },
		Pressure: func(ctx context.Context, mode Oversampling) (int32, error) {
			return 0, broken
		},
	}
	s, err := NewBMP180(context.Background(), nil, WithCalibration(DefaultCalibration()), WithRawSource(src))
	require.NoError(t, err)

	m, err := s.Read(context.Background())
	assert.ErrorIs(t, err, broken)
	assert.Contains(t, err.Error(), "pressure requested")
	assert.Equal(t, Measurement{}, m)
}

func TestBMP180_TransportFailure(t *testing.T) {
	s, bus := newSimBMP180(t)
	bus.Fail(sim.BMP180Address, sim.ErrNoAck)
	_, err := s.ReadTemperatureCelsius(context.Background())
	assert.ErrorIs(t, err, tendof.ErrTransport)
	assert.ErrorIs(t, err, sim.ErrNoAck)

	bus.Fail(sim.BMP180Address, nil)
	_, err = s.ReadTemperatureCelsius(context.Background())
	assert.NoError(t, err)
}

func TestBMP180_Cancelled(t *testing.T) {
	s, _ := newSimBMP180(t, WithOversampling(UltraHighResolution))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// the pressure conversion takes 255 ms
	_, err := s.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBMP180_ConcurrentReaders(t *testing.T) {
	bus := sim.NewBoard()
	arb := i2c.NewArbiter(bus)
	ctx := context.Background()
	s, err := NewBMP180(ctx, arb, WithTemperatureSettle(time.Millisecond))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.ReadPressurePascals(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int32(69964), p)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), bus.MaxInFlight())
}

func TestChipID(t *testing.T) {
	id, err := ChipID(context.Background(), i2c.NewArbiter(sim.NewBoard()), BMP180Address)
	require.NoError(t, err)
	assert.Equal(t, byte(bmp180ChipID), id)
}

func TestBMP180_DeviceNotPresent(t *testing.T) {
	ctx := context.Background()

	_, err := NewBMP180(ctx, i2c.NewArbiter(sim.NewBus()))
	assert.ErrorIs(t, err, ErrDeviceNotPresent)
	assert.ErrorIs(t, err, sim.ErrNoAck)

	// a BMP280 answers at the same address with id 0x58
	bus := sim.NewBoard()
	bus.Device(sim.BMP180Address).Set(0xD0, 0x58)
	_, err = NewBMP180(ctx, i2c.NewArbiter(bus))
	assert.ErrorIs(t, err, ErrDeviceNotPresent)
	for _, op := range bus.Ops() {
		assert.NotEqual(t, byte(0xAA), op.Register, "calibration read from an unknown device")
	}
}

func TestBusSource_ConversionWaits(t *testing.T) {
	modes := []Oversampling{UltraLowPower, Standard, HighResolution, UltraHighResolution}
	settles := []time.Duration{45 * time.Millisecond, 75 * time.Millisecond, 135 * time.Millisecond, 255 * time.Millisecond}
	for i, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			bus := sim.NewBoard()
			ctx := context.Background()
			var waits []time.Duration
			var started []byte
			src := &busSource{
				bus:     i2c.NewArbiter(bus),
				address: BMP180Address,
				settle:  DefaultTemperatureSettle,
				wait: func(ctx context.Context, d time.Duration) error {
					// the conversion must be started before waiting for it
					ops := bus.Ops()
					last := ops[len(ops)-1]
					require.True(t, last.Write)
					require.Equal(t, byte(0xF4), last.Register)
					started = append(started, last.Value)
					waits = append(waits, d)
					return nil
				},
			}

			ut, err := src.RawTemperature(ctx)
			require.NoError(t, err)
			assert.Equal(t, int32(27898), ut)
			up, err := src.RawPressure(ctx, mode)
			require.NoError(t, err)
			assert.Equal(t, int32(23843), up)

			assert.Equal(t, []time.Duration{DefaultTemperatureSettle, settles[i]}, waits)
			assert.Equal(t, []byte{0x2E, 0x34 | byte(i)<<6}, started)
		})
	}
}

func TestBusSource_WaitInterrupted(t *testing.T) {
	bus := sim.NewBoard()
	src := &busSource{
		bus:     i2c.NewArbiter(bus),
		address: BMP180Address,
		wait: func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		},
	}
	_, err := src.RawPressure(context.Background(), HighResolution)
	assert.ErrorIs(t, err, context.Canceled)
	// no data read once the wait failed
	for _, op := range bus.Ops() {
		assert.True(t, op.Write)
	}
}
