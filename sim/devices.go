package sim

import (
	"encoding/binary"
)

const (
	BMP180Address       = 0x77
	LSM303AccelAddress  = 0x19
	LSM303MagAddress    = 0x1E
	bmp180ChipIDReg     = 0xD0
	bmp180ChipID        = 0x55
	bmp180CalibrationAt = 0xAA
	bmp180ControlReg    = 0xF4
	bmp180DataReg       = 0xF6
)

// BMP180Config describes what the simulated barometer reports. UP is the
// uncompensated pressure as the driver composes it for the requested
// oversampling setting.
type BMP180Config struct {
	Calibration [11]uint16
	UT          uint16
	UP          uint32
}

// BMP180Datasheet returns the worked example from the BMP180 datasheet.
func BMP180Datasheet() BMP180Config {
	var ac2, ac3, b1, b2, mb, mc, md int16 = -72, -14383, 6190, 4, -32768, -8711, 2868
	return BMP180Config{
		Calibration: [11]uint16{
			408, uint16(ac2), uint16(ac3), 32741, 32757, 23153,
			uint16(b1), uint16(b2), uint16(mb), uint16(mc), uint16(md),
		},
		UT: 27898,
		UP: 23843,
	}
}

// NewBMP180 simulates a barometer that finishes conversions instantly.
func NewBMP180(cfg BMP180Config) *Device {
	dev := NewDevice(func(regs *[256]byte, register, value byte) {
		if register != bmp180ControlReg {
			return
		}
		switch {
		case value == 0x2E:
			binary.BigEndian.PutUint16(regs[bmp180DataReg:], cfg.UT)
		case value&0x3F == 0x34:
			oss := value >> 6
			raw := cfg.UP << (8 - oss)
			regs[bmp180DataReg] = byte(raw >> 16)
			regs[bmp180DataReg+1] = byte(raw >> 8)
			regs[bmp180DataReg+2] = byte(raw)
		}
	})
	dev.Set(bmp180ChipIDReg, bmp180ChipID)
	calibration := make([]byte, 22)
	for i, w := range cfg.Calibration {
		binary.BigEndian.PutUint16(calibration[i*2:], w)
	}
	dev.Set(bmp180CalibrationAt, calibration...)
	return dev
}

// NewLSM303Accel simulates the accelerometer half of an LSM303DLHC. status is
// the content of STATUS_REG_A (bit0..2 = X/Y/Z data ready).
func NewLSM303Accel(x, y, z int16, status byte) *Device {
	dev := NewDevice(nil)
	dev.Set(0x27, status)
	out := make([]byte, 6)
	binary.LittleEndian.PutUint16(out[0:], uint16(x))
	binary.LittleEndian.PutUint16(out[2:], uint16(y))
	binary.LittleEndian.PutUint16(out[4:], uint16(z))
	dev.Set(0x28, out...)
	return dev
}

// NewLSM303Mag simulates the magnetometer half of an LSM303DLHC. The output
// registers hold X, Z, Y, each high byte first.
func NewLSM303Mag(x, y, z int16) *Device {
	dev := NewDevice(nil)
	out := make([]byte, 6)
	binary.BigEndian.PutUint16(out[0:], uint16(x))
	binary.BigEndian.PutUint16(out[2:], uint16(z))
	binary.BigEndian.PutUint16(out[4:], uint16(y))
	dev.Set(0x03, out...)
	return dev
}

// NewBoard returns a bus with a barometer and an accelerometer/magnetometer at
// their default addresses.
func NewBoard() *Bus {
	bus := NewBus()
	bus.Attach(BMP180Address, NewBMP180(BMP180Datasheet()))
	bus.Attach(LSM303AccelAddress, NewLSM303Accel(-112, 64, 16400, 0x0F))
	bus.Attach(LSM303MagAddress, NewLSM303Mag(215, -143, -410))
	return bus
}
