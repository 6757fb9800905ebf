package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tendof"
)

func TestCtrlReg1A(t *testing.T) {
	c := DefaultCtrlReg1A()
	assert.Equal(t, byte(0x20), c.Register())
	assert.Equal(t, byte(0x27), c.Value())
	assert.True(t, c.PoweredOn())
	assert.Equal(t, 3, c.AxisCount())
	assert.Equal(t, "(0x27) normal mode, data rate 10Hz, axes [x, y, z]", c.String())

	c.SetValue(0x52)
	assert.True(t, c.YEnabled())
	assert.False(t, c.XEnabled())
	assert.False(t, c.ZEnabled())
	assert.Equal(t, 1, c.AxisCount())

	// the data rate replaces the high nibble only
	c.SetDataRate(Accel400Hz)
	assert.Equal(t, byte(0x72), c.Value())
	c.SetLowPower(true)
	assert.Equal(t, byte(0x7A), c.Value())
	assert.True(t, c.LowPower())
	c.SetLowPower(false)
	assert.Equal(t, byte(0x72), c.Value())

	c.SetDataRate(AccelPowerDown)
	assert.False(t, c.PoweredOn())
	assert.Equal(t, "(0x02) power down", c.String())
}

func TestCtrlReg1A_AxisCount(t *testing.T) {
	for mask, want := range map[byte]int{0: 0, 1: 1, 2: 1, 4: 1, 3: 2, 5: 2, 6: 2, 7: 3} {
		assert.Equal(t, want, NewCtrlReg1A(Accel1Hz, mask).AxisCount(), "mask %#x", mask)
	}
}

func TestCRARegM(t *testing.T) {
	c := DefaultCRARegM()
	assert.Equal(t, byte(0x1C), c.Value())
	assert.Equal(t, Mag220Hz, c.Rate())
	assert.False(t, c.Temperature())

	c.SetTemperature(true)
	c.SetRate(Mag0_75Hz)
	assert.Equal(t, byte(0x80), c.Value())
	assert.Equal(t, "(0x80) temperature enabled, output data rate 0.75Hz", c.String())

	rate, err := ParseMagRate("7.5hz")
	require.NoError(t, err)
	assert.Equal(t, Mag7_5Hz, rate)
	_, err = ParseMagRate("1kHz")
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
}

func TestCRBRegM(t *testing.T) {
	c := DefaultCRBRegM()
	assert.Equal(t, byte(0x01), c.Register())
	assert.Equal(t, MagGain8_1, c.Gain())
	assert.Equal(t, "+/-8.1 gauss", c.Gain().String())

	gain, err := ParseMagGain("4.7")
	require.NoError(t, err)
	assert.Equal(t, MagGain4_7, gain)
	_, err = ParseMagGain("3")
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
}

func TestMRRegM(t *testing.T) {
	c := DefaultMRRegM()
	assert.Equal(t, byte(0x02), c.Register())
	assert.Equal(t, MagContinuous, c.Mode())

	mode, err := ParseMagMode("single")
	require.NoError(t, err)
	c.SetValue(byte(mode))
	assert.Equal(t, "(0x01) single-conversion mode", c.String())
	_, err = ParseMagMode("off")
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
}

func TestParseAccel(t *testing.T) {
	rate, err := ParseAccelDataRate("100hz")
	require.NoError(t, err)
	assert.Equal(t, Accel100Hz, rate)
	_, err = ParseAccelDataRate("5Hz")
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)

	mask, err := ParseAxes("XZ")
	require.NoError(t, err)
	assert.Equal(t, byte(0x05), mask)
	_, err = ParseAxes("xw")
	assert.ErrorIs(t, err, tendof.ErrInvalidConfiguration)
}
