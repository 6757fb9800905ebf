package accel

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/mklimuk/tendof"
)

const (
	regCtrl1A = 0x20
	regCRAM   = 0x00
	regCRBM   = 0x01
	regMRM    = 0x02
)

var (
	_ tendof.RegisterConfig = &CtrlReg1A{}
	_ tendof.RegisterConfig = &CRARegM{}
	_ tendof.RegisterConfig = &CRBRegM{}
	_ tendof.RegisterConfig = &MRRegM{}
)

// AccelDataRate is the ODR nibble of CTRL_REG1_A.
type AccelDataRate byte

const (
	AccelPowerDown AccelDataRate = iota
	Accel1Hz
	Accel10Hz
	Accel25Hz
	Accel50Hz
	Accel100Hz
	Accel200Hz
	Accel400Hz
	// AccelLowPower1620Hz is only valid with low power mode on.
	AccelLowPower1620Hz
	// Accel1344Hz runs at 5376 Hz in low power mode.
	Accel1344Hz
)

var accelRateNames = [...]string{"power down", "1Hz", "10Hz", "25Hz", "50Hz", "100Hz", "200Hz", "400Hz", "1620Hz", "1344Hz"}

func (r AccelDataRate) String() string {
	if int(r) < len(accelRateNames) {
		return accelRateNames[r]
	}
	return fmt.Sprintf("rate(%#x)", byte(r))
}

// ParseAccelDataRate accepts the names printed by AccelDataRate.String.
func ParseAccelDataRate(s string) (AccelDataRate, error) {
	for i, name := range accelRateNames {
		if strings.EqualFold(s, name) {
			return AccelDataRate(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown accelerometer data rate %q", tendof.ErrInvalidConfiguration, s)
}

// ParseAxes turns a string such as "xz" into an axis enable mask.
func ParseAxes(s string) (byte, error) {
	var mask byte
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'x':
			mask |= axisX
		case 'y':
			mask |= axisY
		case 'z':
			mask |= axisZ
		default:
			return 0, fmt.Errorf("%w: unknown axis %q", tendof.ErrInvalidConfiguration, r)
		}
	}
	return mask, nil
}

const (
	axisX     = 0x01
	axisY     = 0x02
	axisZ     = 0x04
	axesAll   = axisX | axisY | axisZ
	lowPowerA = 0x08
)

// CtrlReg1A configures the accelerometer: data rate, low power mode and the
// enabled axes.
type CtrlReg1A struct {
	value byte
}

// NewCtrlReg1A enables the axes in mask (bit0 X, bit1 Y, bit2 Z).
func NewCtrlReg1A(rate AccelDataRate, mask byte) *CtrlReg1A {
	return &CtrlReg1A{value: byte(rate)<<4 | mask&axesAll}
}

// DefaultCtrlReg1A is 10 Hz with all three axes enabled.
func DefaultCtrlReg1A() *CtrlReg1A {
	return NewCtrlReg1A(Accel10Hz, axesAll)
}

func (c *CtrlReg1A) Register() byte      { return regCtrl1A }
func (c *CtrlReg1A) Value() byte         { return c.value }
func (c *CtrlReg1A) SetValue(value byte) { c.value = value }

func (c *CtrlReg1A) DataRate() AccelDataRate {
	return AccelDataRate(c.value >> 4)
}

func (c *CtrlReg1A) SetDataRate(rate AccelDataRate) {
	c.value = c.value&0x0F | byte(rate)<<4
}

// PoweredOn is false when the data rate nibble selects power down.
func (c *CtrlReg1A) PoweredOn() bool {
	return c.DataRate() != AccelPowerDown
}

func (c *CtrlReg1A) LowPower() bool {
	return c.value&lowPowerA != 0
}

func (c *CtrlReg1A) SetLowPower(on bool) {
	if on {
		c.value |= lowPowerA
		return
	}
	c.value &^= lowPowerA
}

func (c *CtrlReg1A) XEnabled() bool { return c.value&axisX != 0 }
func (c *CtrlReg1A) YEnabled() bool { return c.value&axisY != 0 }
func (c *CtrlReg1A) ZEnabled() bool { return c.value&axisZ != 0 }

// AxisCount returns how many axes are enabled.
func (c *CtrlReg1A) AxisCount() int {
	return bits.OnesCount8(c.value & axesAll)
}

func (c *CtrlReg1A) axisEnabled(i int) bool {
	return c.value&(1<<i) != 0
}

func (c *CtrlReg1A) String() string {
	if !c.PoweredOn() {
		return fmt.Sprintf("(%#02x) power down", c.value)
	}
	power := "normal"
	if c.LowPower() {
		power = "low power"
	}
	var axes []string
	for i, name := range []string{"x", "y", "z"} {
		if c.axisEnabled(i) {
			axes = append(axes, name)
		}
	}
	return fmt.Sprintf("(%#02x) %s mode, data rate %s, axes [%s]", c.value, power, c.DataRate(), strings.Join(axes, ", "))
}

// MagRate is the output rate selected in CRA_REG_M bits 4:2.
type MagRate byte

const (
	Mag0_75Hz MagRate = iota
	Mag1_5Hz
	Mag3Hz
	Mag7_5Hz
	Mag15Hz
	Mag30Hz
	Mag75Hz
	Mag220Hz
)

var magRateNames = [...]string{"0.75Hz", "1.5Hz", "3Hz", "7.5Hz", "15Hz", "30Hz", "75Hz", "220Hz"}

func (r MagRate) String() string {
	if int(r) < len(magRateNames) {
		return magRateNames[r]
	}
	return fmt.Sprintf("rate(%#x)", byte(r))
}

// ParseMagRate accepts the names printed by MagRate.String.
func ParseMagRate(s string) (MagRate, error) {
	for i, name := range magRateNames {
		if strings.EqualFold(s, name) {
			return MagRate(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown magnetometer rate %q", tendof.ErrInvalidConfiguration, s)
}

const tempEnableM = 0x80

// CRARegM holds the magnetometer output rate and the temperature sensor switch.
type CRARegM struct {
	value byte
}

func NewCRARegM(rate MagRate, temperature bool) *CRARegM {
	c := &CRARegM{}
	c.SetRate(rate)
	c.SetTemperature(temperature)
	return c
}

// DefaultCRARegM is 220 Hz with the temperature sensor off.
func DefaultCRARegM() *CRARegM {
	return NewCRARegM(Mag220Hz, false)
}

func (c *CRARegM) Register() byte      { return regCRAM }
func (c *CRARegM) Value() byte         { return c.value }
func (c *CRARegM) SetValue(value byte) { c.value = value }

func (c *CRARegM) Rate() MagRate {
	return MagRate(c.value >> 2 & 0x07)
}

func (c *CRARegM) SetRate(rate MagRate) {
	c.value = c.value&^0x1C | byte(rate&0x07)<<2
}

func (c *CRARegM) Temperature() bool {
	return c.value&tempEnableM != 0
}

func (c *CRARegM) SetTemperature(on bool) {
	if on {
		c.value |= tempEnableM
		return
	}
	c.value &^= tempEnableM
}

func (c *CRARegM) String() string {
	temp := ""
	if c.Temperature() {
		temp = "temperature enabled, "
	}
	return fmt.Sprintf("(%#02x) %soutput data rate %s", c.value, temp, c.Rate())
}

// MagGain is the full CRB_REG_M value selecting the input field range.
type MagGain byte

const (
	MagGain1_3 MagGain = 0x20
	MagGain1_9 MagGain = 0x40
	MagGain2_5 MagGain = 0x60
	MagGain4_0 MagGain = 0x80
	MagGain4_7 MagGain = 0xA0
	MagGain5_6 MagGain = 0xC0
	MagGain8_1 MagGain = 0xE0
)

var magGainNames = map[MagGain]string{
	MagGain1_3: "1.3",
	MagGain1_9: "1.9",
	MagGain2_5: "2.5",
	MagGain4_0: "4.0",
	MagGain4_7: "4.7",
	MagGain5_6: "5.6",
	MagGain8_1: "8.1",
}

func (g MagGain) String() string {
	if name, ok := magGainNames[g]; ok {
		return "+/-" + name + " gauss"
	}
	return fmt.Sprintf("gain(%#02x)", byte(g))
}

// ParseMagGain accepts the range in gauss, e.g. "1.3" or "8.1".
func ParseMagGain(s string) (MagGain, error) {
	for g, name := range magGainNames {
		if s == name {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown magnetometer gain %q", tendof.ErrInvalidConfiguration, s)
}

type CRBRegM struct {
	value byte
}

func NewCRBRegM(gain MagGain) *CRBRegM {
	return &CRBRegM{value: byte(gain)}
}

func DefaultCRBRegM() *CRBRegM {
	return NewCRBRegM(MagGain8_1)
}

func (c *CRBRegM) Register() byte      { return regCRBM }
func (c *CRBRegM) Value() byte         { return c.value }
func (c *CRBRegM) SetValue(value byte) { c.value = value }
func (c *CRBRegM) Gain() MagGain       { return MagGain(c.value & 0xE0) }

func (c *CRBRegM) String() string {
	return fmt.Sprintf("(%#02x) sensor input field range %s", c.value, c.Gain())
}

type MagMode byte

const (
	MagContinuous MagMode = 0x00
	MagSingle     MagMode = 0x01
	MagSleep      MagMode = 0x02
)

func (m MagMode) String() string {
	switch m & 0x03 {
	case MagContinuous:
		return "continuous-conversion"
	case MagSingle:
		return "single-conversion"
	default:
		return "sleep"
	}
}

// ParseMagMode accepts continuous, single or sleep.
func ParseMagMode(s string) (MagMode, error) {
	switch strings.ToLower(s) {
	case "continuous", "continuous-conversion":
		return MagContinuous, nil
	case "single", "single-conversion":
		return MagSingle, nil
	case "sleep":
		return MagSleep, nil
	}
	return 0, fmt.Errorf("%w: unknown magnetometer mode %q", tendof.ErrInvalidConfiguration, s)
}

type MRRegM struct {
	value byte
}

func NewMRRegM(mode MagMode) *MRRegM {
	return &MRRegM{value: byte(mode)}
}

func DefaultMRRegM() *MRRegM {
	return NewMRRegM(MagContinuous)
}

func (c *MRRegM) Register() byte      { return regMRM }
func (c *MRRegM) Value() byte         { return c.value }
func (c *MRRegM) SetValue(value byte) { c.value = value }
func (c *MRRegM) Mode() MagMode       { return MagMode(c.value & 0x03) }

func (c *MRRegM) String() string {
	return fmt.Sprintf("(%#02x) %s mode", c.value, c.Mode())
}
