package accel

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/snsctx"
)

const (
	AccelAddress = 0x19
	MagAddress   = 0x1E
)

const (
	regStatusA = 0x27
	regOutXLA  = 0x28

	regOutXHM = 0x03
	regOutZHM = 0x05
	regOutYHM = 0x07
)

// Vector is a raw three axis sample.
type Vector struct {
	X int16 `yaml:"x"`
	Y int16 `yaml:"y"`
	Z int16 `yaml:"z"`
}

type LSM303Opts struct {
	AccelAddress byte
	MagAddress   byte
	Accel        *CtrlReg1A
	CRA          *CRARegM
	CRB          *CRBRegM
	MR           *MRRegM
}

type LSM303Opt func(*LSM303Opts)

func WithAccelAddress(address byte) LSM303Opt {
	return func(o *LSM303Opts) {
		o.AccelAddress = address
	}
}

func WithMagAddress(address byte) LSM303Opt {
	return func(o *LSM303Opts) {
		o.MagAddress = address
	}
}

func WithAccelConfig(cfg *CtrlReg1A) LSM303Opt {
	return func(o *LSM303Opts) {
		o.Accel = cfg
	}
}

func WithMagRate(rate MagRate, temperature bool) LSM303Opt {
	return func(o *LSM303Opts) {
		o.CRA = NewCRARegM(rate, temperature)
	}
}

func WithMagGain(gain MagGain) LSM303Opt {
	return func(o *LSM303Opts) {
		o.CRB = NewCRBRegM(gain)
	}
}

func WithMagMode(mode MagMode) LSM303Opt {
	return func(o *LSM303Opts) {
		o.MR = NewMRRegM(mode)
	}
}

// LSM303DLHC reads an ST LSM303DLHC accelerometer/magnetometer. Both halves
// share the bus but answer at different addresses.
//
//	imu, err := accel.NewLSM303DLHC(ctx, arbiter)
//	v, err := imu.ReadAccelerometer(ctx)
type LSM303DLHC struct {
	mx     sync.Mutex
	bus    tendof.SharedBus
	config LSM303Opts
}

// NewLSM303DLHC writes the configuration registers of both halves.
func NewLSM303DLHC(ctx context.Context, bus tendof.SharedBus, opts ...LSM303Opt) (*LSM303DLHC, error) {
	config := LSM303Opts{
		AccelAddress: AccelAddress,
		MagAddress:   MagAddress,
		Accel:        DefaultCtrlReg1A(),
		CRA:          DefaultCRARegM(),
		CRB:          DefaultCRBRegM(),
		MR:           DefaultMRRegM(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Accel == nil {
		return nil, fmt.Errorf("lsm303dlhc: %w: missing accelerometer control register", tendof.ErrInvalidConfiguration)
	}
	s := &LSM303DLHC{bus: bus, config: config}
	err := bus.StoreConfiguration(ctx, config.Accel, config.AccelAddress)
	if err != nil {
		return nil, fmt.Errorf("lsm303dlhc: could not configure accelerometer: %w", err)
	}
	for _, reg := range s.magRegisters() {
		err = bus.StoreConfiguration(ctx, reg, config.MagAddress)
		if err != nil {
			return nil, fmt.Errorf("lsm303dlhc: could not configure magnetometer register %#x: %w", reg.Register(), err)
		}
	}
	snsctx.Logger(ctx).Debug("lsm303dlhc ready", "accel", config.Accel.String(), "cra", config.CRA.String(), "crb", config.CRB.String(), "mr", config.MR.String())
	return s, nil
}

func (s *LSM303DLHC) magRegisters() []tendof.RegisterConfig {
	return []tendof.RegisterConfig{s.config.CRA, s.config.CRB, s.config.MR}
}

// AccelConfig returns a copy of the accelerometer control register as last
// written or refreshed.
func (s *LSM303DLHC) AccelConfig() CtrlReg1A {
	s.mx.Lock()
	defer s.mx.Unlock()
	return *s.config.Accel
}

// MagConfig returns copies of the three magnetometer configuration registers.
func (s *LSM303DLHC) MagConfig() (CRARegM, CRBRegM, MRRegM) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return *s.config.CRA, *s.config.CRB, *s.config.MR
}

// RefreshConfig reads the configuration registers back from the device.
func (s *LSM303DLHC) RefreshConfig(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	err := s.bus.LoadConfiguration(ctx, s.config.Accel, s.config.AccelAddress)
	if err != nil {
		return fmt.Errorf("lsm303dlhc: could not read accelerometer configuration: %w", err)
	}
	for _, reg := range s.magRegisters() {
		err = s.bus.LoadConfiguration(ctx, reg, s.config.MagAddress)
		if err != nil {
			return fmt.Errorf("lsm303dlhc: could not read magnetometer register %#x: %w", reg.Register(), err)
		}
	}
	return nil
}

// ReadAccelerometer returns the axes that are both enabled and ready; the rest
// stay zero. A powered off accelerometer reads as a zero vector without any
// bus traffic.
func (s *LSM303DLHC) ReadAccelerometer(ctx context.Context) (Vector, error) {
	ctrl := s.AccelConfig()
	if !ctrl.PoweredOn() {
		return Vector{}, nil
	}
	tx, err := s.bus.Begin(ctx, s.config.AccelAddress)
	if err != nil {
		return Vector{}, fmt.Errorf("lsm303dlhc: %w", err)
	}
	defer func() { _ = tx.End() }()
	status, err := tx.ReadByteData(ctx, regStatusA)
	if err != nil {
		return Vector{}, fmt.Errorf("lsm303dlhc: could not read status: %w", err)
	}
	var out [3]int16
	for i := range out {
		if status&(1<<i) == 0 || !ctrl.axisEnabled(i) {
			continue
		}
		w, err := tx.ReadWordData(ctx, regOutXLA+byte(2*i), true)
		if err != nil {
			return Vector{}, fmt.Errorf("lsm303dlhc: could not read acceleration axis %d: %w", i, err)
		}
		out[i] = int16(w)
	}
	return Vector{X: out[0], Y: out[1], Z: out[2]}, nil
}

// ReadMagnetometer reads all three axes. The device outputs them in X, Z, Y
// order.
func (s *LSM303DLHC) ReadMagnetometer(ctx context.Context) (Vector, error) {
	tx, err := s.bus.Begin(ctx, s.config.MagAddress)
	if err != nil {
		return Vector{}, fmt.Errorf("lsm303dlhc: %w", err)
	}
	defer func() { _ = tx.End() }()
	var v Vector
	for _, axis := range []struct {
		reg byte
		out *int16
	}{
		{regOutXHM, &v.X},
		{regOutZHM, &v.Z},
		{regOutYHM, &v.Y},
	} {
		w, err := tx.ReadWordData(ctx, axis.reg, false)
		if err != nil {
			return Vector{}, fmt.Errorf("lsm303dlhc: could not read magnetic field at %#x: %w", axis.reg, err)
		}
		*axis.out = int16(w)
	}
	return v, nil
}

// Heading is the compass heading of a magnetometer sample in radians,
// measured from the X axis towards Y.
func Heading(v Vector) float64 {
	return math.Atan2(float64(v.Y), float64(v.X))
}

// HeadingDegrees maps Heading onto [0, 360).
func HeadingDegrees(v Vector) float64 {
	deg := Heading(v) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
