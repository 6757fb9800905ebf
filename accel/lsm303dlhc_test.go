package accel

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/i2c"
	"github.com/mklimuk/tendof/sim"
)

func TestNewLSM303DLHC_StoresDefaults(t *testing.T) {
	bus := sim.NewBoard()
	_, err := NewLSM303DLHC(context.Background(), i2c.NewArbiter(bus))
	require.NoError(t, err)

	acc := bus.Device(sim.LSM303AccelAddress)
	mag := bus.Device(sim.LSM303MagAddress)
	assert.Equal(t, byte(0x27), acc.Get(0x20))
	assert.Equal(t, byte(0x1C), mag.Get(0x00))
	assert.Equal(t, byte(0xE0), mag.Get(0x01))
	assert.Equal(t, byte(0x00), mag.Get(0x02))
}

func TestNewLSM303DLHC_Options(t *testing.T) {
	bus := sim.NewBoard()
	_, err := NewLSM303DLHC(context.Background(), i2c.NewArbiter(bus),
		WithAccelConfig(NewCtrlReg1A(Accel100Hz, 0x05)),
		WithMagRate(Mag15Hz, true),
		WithMagGain(MagGain1_3),
		WithMagMode(MagSingle),
	)
	require.NoError(t, err)
	mag := bus.Device(sim.LSM303MagAddress)
	assert.Equal(t, byte(0x55), bus.Device(sim.LSM303AccelAddress).Get(0x20))
	assert.Equal(t, byte(0x90), mag.Get(0x00))
	assert.Equal(t, byte(0x20), mag.Get(0x01))
	assert.Equal(t, byte(0x01), mag.Get(0x02))

	_, err = NewLSM303DLHC(context.Background(), i2c.NewArbiter(bus), WithAccelConfig(nil))
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
}

func TestReadAccelerometer(t *testing.T) {
	ctx := context.Background()
	imu, err := NewLSM303DLHC(ctx, i2c.NewArbiter(sim.NewBoard()))
	require.NoError(t, err)
	v, err := imu.ReadAccelerometer(ctx)
	require.NoError(t, err)
	assert.Equal(t, Vector{X: -112, Y: 64, Z: 16400}, v)
}

func TestReadAccelerometer_AxisGating(t *testing.T) {
	tests := []struct {
		name   string
		mask   byte
		status byte
		want   Vector
	}{
		{"all ready and enabled", 0x07, 0x0F, Vector{X: -112, Y: 64, Z: 16400}},
		{"y disabled", 0x05, 0x0F, Vector{X: -112, Z: 16400}},
		{"x not ready", 0x07, 0x06, Vector{Y: 64, Z: 16400}},
		{"only z enabled and x ready", 0x04, 0x01, Vector{}},
		{"nothing ready", 0x07, 0x00, Vector{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			bus := sim.NewBus()
			bus.Attach(sim.LSM303AccelAddress, sim.NewLSM303Accel(-112, 64, 16400, tt.status))
			bus.Attach(sim.LSM303MagAddress, sim.NewLSM303Mag(0, 0, 0))
			imu, err := NewLSM303DLHC(ctx, i2c.NewArbiter(bus), WithAccelConfig(NewCtrlReg1A(Accel50Hz, tt.mask)))
			require.NoError(t, err)
			v, err := imu.ReadAccelerometer(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestReadAccelerometer_PoweredOff(t *testing.T) {
	ctx := context.Background()
	bus := sim.NewBoard()
	imu, err := NewLSM303DLHC(ctx, i2c.NewArbiter(bus), WithAccelConfig(NewCtrlReg1A(AccelPowerDown, 0x07)))
	require.NoError(t, err)
	before := len(bus.Ops())

	v, err := imu.ReadAccelerometer(ctx)
	require.NoError(t, err)
	assert.Equal(t, Vector{}, v)
	assert.Len(t, bus.Ops(), before)
}

func TestReadAccelerometer_TransportError(t *testing.T) {
	ctx := context.Background()
	bus := sim.NewBoard()
	imu, err := NewLSM303DLHC(ctx, i2c.NewArbiter(bus))
	require.NoError(t, err)
	bus.Fail(sim.LSM303AccelAddress, sim.ErrNoAck)

	v, err := imu.ReadAccelerometer(ctx)
	assert.ErrorIs(t, err, tendof.ErrTransport)
	assert.Equal(t, Vector{}, v)
}

func TestReadMagnetometer(t *testing.T) {
	ctx := context.Background()
	imu, err := NewLSM303DLHC(ctx, i2c.NewArbiter(sim.NewBoard()))
	require.NoError(t, err)
	v, err := imu.ReadMagnetometer(ctx)
	require.NoError(t, err)
	assert.Equal(t, Vector{X: 215, Y: -143, Z: -410}, v)
}

func TestRefreshConfig(t *testing.T) {
	ctx := context.Background()
	bus := sim.NewBoard()
	imu, err := NewLSM303DLHC(ctx, i2c.NewArbiter(bus))
	require.NoError(t, err)

	bus.Device(sim.LSM303AccelAddress).Set(0x20, 0x08)
	bus.Device(sim.LSM303MagAddress).Set(0x02, 0x03)
	require.NoError(t, imu.RefreshConfig(ctx))

	ctrl := imu.AccelConfig()
	assert.False(t, ctrl.PoweredOn())
	assert.True(t, ctrl.LowPower())
	_, _, mr := imu.MagConfig()
	assert.Equal(t, "sleep", mr.Mode().String())

	v, err := imu.ReadAccelerometer(ctx)
	require.NoError(t, err)
	assert.Equal(t, Vector{}, v)
}

func TestHeading(t *testing.T) {
	assert.InDelta(t, 0, Heading(Vector{X: 100}), 1e-9)
	assert.InDelta(t, math.Pi/2, Heading(Vector{Y: 100}), 1e-9)
	assert.InDelta(t, math.Atan2(-143, 215), Heading(Vector{X: 215, Y: -143, Z: -410}), 1e-9)
	assert.InDelta(t, 270, HeadingDegrees(Vector{Y: -50}), 1e-9)
}
