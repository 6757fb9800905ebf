package environment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/tendof"
)

const bmp180RegCalibration = 0xAA

// ErrInvalidCalibration means the calibration EEPROM returned an erased or
// unreadable word.
var ErrInvalidCalibration = errors.New("invalid calibration data")

// Calibration holds the eleven factory coefficients of a BMP180.
type Calibration struct {
	AC1 int16  `yaml:"ac1"`
	AC2 int16  `yaml:"ac2"`
	AC3 int16  `yaml:"ac3"`
	AC4 uint16 `yaml:"ac4"`
	AC5 uint16 `yaml:"ac5"`
	AC6 uint16 `yaml:"ac6"`
	B1  int16  `yaml:"b1"`
	B2  int16  `yaml:"b2"`
	MB  int16  `yaml:"mb"`
	MC  int16  `yaml:"mc"`
	MD  int16  `yaml:"md"`
}

// DefaultCalibration returns the example coefficients published in the BMP180
// datasheet. It is meant for test mode and simulations.
func DefaultCalibration() Calibration {
	return Calibration{
		AC1: 408,
		AC2: -72,
		AC3: -14383,
		AC4: 32741,
		AC5: 32757,
		AC6: 23153,
		B1:  6190,
		B2:  4,
		MB:  -32768,
		MC:  -8711,
		MD:  2868,
	}
}

// CalibrationFromWords builds the coefficients from the raw EEPROM words in
// register order. Erased (0xFFFF) or empty (0x0000) words are rejected.
func CalibrationFromWords(words [11]uint16) (Calibration, error) {
	for i, w := range words {
		if w == 0x0000 || w == 0xFFFF {
			return Calibration{}, fmt.Errorf("%w: word %d at %#x is %#04x", ErrInvalidCalibration, i, bmp180RegCalibration+2*i, w)
		}
	}
	return Calibration{
		AC1: int16(words[0]),
		AC2: int16(words[1]),
		AC3: int16(words[2]),
		AC4: words[3],
		AC5: words[4],
		AC6: words[5],
		B1:  int16(words[6]),
		B2:  int16(words[7]),
		MB:  int16(words[8]),
		MC:  int16(words[9]),
		MD:  int16(words[10]),
	}, nil
}

// AcquireCalibration reads the coefficients of the BMP180 at address in a
// single bus transaction.
func AcquireCalibration(ctx context.Context, bus tendof.SharedBus, address byte) (Calibration, error) {
	tx, err := bus.Begin(ctx, address)
	if err != nil {
		return Calibration{}, fmt.Errorf("bmp180: could not acquire bus: %w", err)
	}
	defer func() { _ = tx.End() }()
	var words [11]uint16
	for i := range words {
		words[i], err = tx.ReadWordData(ctx, bmp180RegCalibration+byte(2*i), false)
		if err != nil {
			return Calibration{}, fmt.Errorf("bmp180: could not read calibration word %d: %w", i, err)
		}
	}
	cal, err := CalibrationFromWords(words)
	if err != nil {
		return Calibration{}, fmt.Errorf("bmp180: %w", err)
	}
	return cal, nil
}
