package environment

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mklimuk/tendof"
)

// SeaLevelPressure is the standard atmosphere at sea level in Pa.
const SeaLevelPressure = 101325

var (
	// ErrStageOrder is returned when pressure compensation is attempted without
	// a temperature computed in the same cycle.
	ErrStageOrder = errors.New("pressure compensation requires a temperature from the same cycle")
	// ErrCompensation is returned when raw data leads to a division by zero.
	ErrCompensation = errors.New("raw data cannot be compensated")
)

// Oversampling selects the BMP180 pressure resolution/latency trade-off.
type Oversampling byte

const (
	UltraLowPower Oversampling = iota
	Standard
	HighResolution
	UltraHighResolution
)

var oversamplingSettle = [...]time.Duration{
	45 * time.Millisecond,
	75 * time.Millisecond,
	135 * time.Millisecond,
	255 * time.Millisecond,
}

var oversamplingNames = [...]string{
	"ultra-low-power",
	"standard",
	"high-resolution",
	"ultra-high-resolution",
}

func (o Oversampling) Valid() bool {
	return int(o) < len(oversamplingSettle)
}

// Settle is how long a pressure conversion takes in this mode.
func (o Oversampling) Settle() time.Duration {
	if !o.Valid() {
		return oversamplingSettle[len(oversamplingSettle)-1]
	}
	return oversamplingSettle[o]
}

func (o Oversampling) String() string {
	if !o.Valid() {
		return fmt.Sprintf("oversampling(%d)", byte(o))
	}
	return oversamplingNames[o]
}

// ParseOversampling accepts a mode name or its code 0..3.
func ParseOversampling(s string) (Oversampling, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range oversamplingNames {
		if s == name {
			return Oversampling(i), nil
		}
	}
	code, err := strconv.Atoi(s)
	if err == nil && code >= 0 && code < len(oversamplingNames) {
		return Oversampling(code), nil
	}
	return 0, fmt.Errorf("%w: unknown oversampling mode %q", tendof.ErrInvalidConfiguration, s)
}

func (o Oversampling) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: oversampling mode %d", tendof.ErrInvalidConfiguration, byte(o))
	}
	return []byte(o.String()), nil
}

func (o *Oversampling) UnmarshalText(text []byte) error {
	mode, err := ParseOversampling(string(text))
	if err != nil {
		return err
	}
	*o = mode
	return nil
}

// ComposeRawPressure assembles the uncompensated pressure from the three data
// registers.
func ComposeRawPressure(msb, lsb, xlsb byte, mode Oversampling) int32 {
	return (int32(msb)<<16 + int32(lsb)<<8 + int32(xlsb)) >> (8 - mode)
}

// Temperature is the result of temperature compensation. B5 feeds the pressure
// stage of the same cycle.
type Temperature struct {
	B5   int32
	Deci int32
	ok   bool
}

// Celsius returns the temperature in degrees Celsius.
func (t Temperature) Celsius() float64 {
	return float64(t.Deci) / 10
}

// Valid tells whether t came out of CompensateTemperature.
func (t Temperature) Valid() bool {
	return t.ok
}

// CompensateTemperature converts the raw temperature word using the integer
// algorithm from the BMP180 datasheet.
func CompensateTemperature(cal Calibration, ut int32) (Temperature, error) {
	x1 := ((ut - int32(cal.AC6)) * int32(cal.AC5)) >> 15
	div := x1 + int32(cal.MD)
	if div == 0 {
		return Temperature{}, fmt.Errorf("%w: X1+MD is zero (UT=%d)", ErrCompensation, ut)
	}
	x2 := (int32(cal.MC) << 11) / div
	b5 := x1 + x2
	return Temperature{
		B5:   b5,
		Deci: (b5 + 8) >> 4,
		ok:   true,
	}, nil
}

// Pressure is the outcome of pressure compensation; the intermediate terms are
// kept for diagnostics.
type Pressure struct {
	Pascals int32
	B3      int32
	B4      uint32
	B6      int32
	B7      uint32
}

// CompensatePressure converts the raw pressure using temp from the same cycle.
// All arithmetic wraps at 32 bits like the sensor's reference implementation.
func CompensatePressure(cal Calibration, temp Temperature, up int32, mode Oversampling) (Pressure, error) {
	if !temp.Valid() {
		return Pressure{}, ErrStageOrder
	}
	if !mode.Valid() {
		return Pressure{}, fmt.Errorf("%w: oversampling mode %d", tendof.ErrInvalidConfiguration, byte(mode))
	}
	oss := uint(mode)

	b6 := temp.B5 - 4000
	x1 := (int32(cal.B2) * ((b6 * b6) >> 12)) >> 11
	x2 := (int32(cal.AC2) * b6) >> 11
	x3 := x1 + x2
	b3 := (((int32(cal.AC1)*4 + x3) << oss) + 2) >> 2

	x1 = (int32(cal.AC3) * b6) >> 13
	x2 = (int32(cal.B1) * ((b6 * b6) >> 12)) >> 16
	x3 = ((x1 + x2) + 2) >> 2
	b4 := (uint32(cal.AC4) * uint32(x3+32768)) >> 15
	if b4 == 0 {
		return Pressure{}, fmt.Errorf("%w: B4 is zero", ErrCompensation)
	}
	b7 := uint32(up-b3) * (50000 >> oss)

	var p int32
	if b7 < 0x80000000 {
		p = int32((b7 * 2) / b4)
	} else {
		p = int32((b7 / b4) * 2)
	}

	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	p += (x1 + x2 + 3791) >> 4

	return Pressure{Pascals: p, B3: b3, B4: b4, B6: b6, B7: b7}, nil
}

// Altitude estimates the height in meters at which pressure (Pa) is measured,
// given the pressure at sea level.
func Altitude(pressure int32, seaLevel float64) float64 {
	return 44330 * (1 - math.Pow(float64(pressure)/seaLevel, 1/5.255))
}
