package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/snsctx"
)

// BMP180Address is the fixed 7-bit address of the BMP180.
const BMP180Address = 0x77

// DefaultTemperatureSettle is the wait between starting a temperature
// conversion and reading it back. The datasheet needs 4.5 ms; the default is
// what slow bridges have proven to require.
const DefaultTemperatureSettle = 450 * time.Millisecond

type BMP180Opts struct {
	Address           byte
	Oversampling      Oversampling
	TemperatureSettle time.Duration
	Calibration       *Calibration
	Source            RawSource
}

type BMP180Opt func(*BMP180Opts)

func WithBMP180Address(address byte) BMP180Opt {
	return func(o *BMP180Opts) {
		o.Address = address
	}
}

func WithOversampling(mode Oversampling) BMP180Opt {
	return func(o *BMP180Opts) {
		o.Oversampling = mode
	}
}

func WithTemperatureSettle(d time.Duration) BMP180Opt {
	return func(o *BMP180Opts) {
		o.TemperatureSettle = d
	}
}

// WithCalibration skips reading the coefficients from the device.
func WithCalibration(cal Calibration) BMP180Opt {
	return func(o *BMP180Opts) {
		o.Calibration = &cal
	}
}

// WithRawSource replaces the bus as the source of raw readings.
func WithRawSource(src RawSource) BMP180Opt {
	return func(o *BMP180Opts) {
		o.Source = src
	}
}

// WithTestMode runs the sensor without hardware: datasheet calibration and the
// given fixed raw readings.
func WithTestMode(ut, up int32) BMP180Opt {
	return func(o *BMP180Opts) {
		cal := DefaultCalibration()
		o.Calibration = &cal
		o.Source = FixedRawSource{UT: ut, UP: up}
	}
}

// Measurement is the outcome of one full reading cycle.
type Measurement struct {
	Temperature float64      `yaml:"temperature"`
	Pressure    int32        `yaml:"pressure"`
	Mode        Oversampling `yaml:"mode"`
}

// BMP180 is a barometric pressure and temperature sensor. A reading cycle
// always computes temperature before pressure; concurrent reads on the same
// instance are serialized.
type BMP180 struct {
	mx     sync.Mutex
	config BMP180Opts
	cal    Calibration
	source RawSource
	mode   Oversampling
}

// NewBMP180 prepares the sensor. Whenever the device is going to be used its
// chip id is checked first. Unless a calibration is supplied it is read from
// the device, so bus may only be nil when both calibration and raw source are
// given.
func NewBMP180(ctx context.Context, bus tendof.SharedBus, opts ...BMP180Opt) (*BMP180, error) {
	config := BMP180Opts{
		Address:           BMP180Address,
		Oversampling:      UltraLowPower,
		TemperatureSettle: DefaultTemperatureSettle,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if !config.Oversampling.Valid() {
		return nil, fmt.Errorf("bmp180: %w: oversampling mode %d", tendof.ErrInvalidConfiguration, byte(config.Oversampling))
	}
	if bus == nil && (config.Calibration == nil || config.Source == nil) {
		return nil, fmt.Errorf("bmp180: %w: a bus is required without fixed calibration and raw source", tendof.ErrInvalidConfiguration)
	}
	if bus != nil && (config.Calibration == nil || config.Source == nil) {
		if err := probe(ctx, bus, config.Address); err != nil {
			return nil, err
		}
	}
	s := &BMP180{
		config: config,
		mode:   config.Oversampling,
		source: config.Source,
	}
	if config.Calibration != nil {
		s.cal = *config.Calibration
	} else {
		cal, err := AcquireCalibration(ctx, bus, config.Address)
		if err != nil {
			return nil, err
		}
		s.cal = cal
	}
	if s.source == nil {
		s.source = &busSource{
			bus:     bus,
			address: config.Address,
			settle:  config.TemperatureSettle,
			wait:    sleepCtx,
		}
	}
	snsctx.Logger(ctx).Debug("bmp180 ready", "address", fmt.Sprintf("%#x", config.Address), "mode", s.mode)
	return s, nil
}

func (s *BMP180) Calibration() Calibration {
	return s.cal
}

func (s *BMP180) Oversampling() Oversampling {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.mode
}

// SetOversampling changes the mode of subsequent pressure readings.
func (s *BMP180) SetOversampling(mode Oversampling) error {
	if !mode.Valid() {
		return fmt.Errorf("bmp180: %w: oversampling mode %d", tendof.ErrInvalidConfiguration, byte(mode))
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	s.mode = mode
	return nil
}

// ReadTemperatureCelsius runs the temperature half of a cycle.
func (s *BMP180) ReadTemperatureCelsius(ctx context.Context) (float64, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	c := s.newCycle(ctx)
	temp, err := c.temperature()
	if err != nil {
		return 0, err
	}
	c.advance(stageIdle)
	return temp.Celsius(), nil
}

// ReadPressurePascals runs a full cycle and returns the pressure in Pa. The
// temperature is always measured again first.
func (s *BMP180) ReadPressurePascals(ctx context.Context) (int32, error) {
	m, err := s.Read(ctx)
	if err != nil {
		return 0, err
	}
	return m.Pressure, nil
}

// Read runs a full cycle and returns both values.
func (s *BMP180) Read(ctx context.Context) (Measurement, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	c := s.newCycle(ctx)
	temp, err := c.temperature()
	if err != nil {
		return Measurement{}, err
	}
	p, err := c.pressure(temp)
	if err != nil {
		return Measurement{}, err
	}
	c.advance(stageIdle)
	return Measurement{
		Temperature: temp.Celsius(),
		Pressure:    p.Pascals,
		Mode:        c.mode,
	}, nil
}

type stage int

const (
	stageIdle stage = iota
	stageTemperatureRequested
	stageTemperatureRead
	stagePressureRequested
	stagePressureRead
	stageCompensated
)

var stageNames = [...]string{
	"idle",
	"temperature requested",
	"temperature read",
	"pressure requested",
	"pressure read",
	"compensated",
}

func (st stage) String() string {
	if int(st) < len(stageNames) {
		return stageNames[st]
	}
	return fmt.Sprintf("stage(%d)", int(st))
}

// cycle is a single temperature-then-pressure reading. It never outlives the
// call that created it, so B5 cannot leak between readings.
type cycle struct {
	ctx    context.Context
	log    *slog.Logger
	source RawSource
	cal    Calibration
	mode   Oversampling
	stage  stage
}

func (s *BMP180) newCycle(ctx context.Context) *cycle {
	return &cycle{
		ctx:    ctx,
		log:    snsctx.Logger(ctx),
		source: s.source,
		cal:    s.cal,
		mode:   s.mode,
	}
}

func (c *cycle) advance(to stage) {
	c.stage = to
	if snsctx.IsVerbose(c.ctx) {
		c.log.Debug("bmp180 cycle", "stage", to.String())
	}
}

func (c *cycle) fail(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("bmp180: interrupted at %s: %w", c.stage, err)
	}
	return fmt.Errorf("bmp180: failed at %s: %w", c.stage, err)
}

func (c *cycle) temperature() (Temperature, error) {
	c.advance(stageTemperatureRequested)
	ut, err := c.source.RawTemperature(c.ctx)
	if err != nil {
		return Temperature{}, c.fail(err)
	}
	c.advance(stageTemperatureRead)
	temp, err := CompensateTemperature(c.cal, ut)
	if err != nil {
		return Temperature{}, c.fail(err)
	}
	return temp, nil
}

func (c *cycle) pressure(temp Temperature) (Pressure, error) {
	c.advance(stagePressureRequested)
	up, err := c.source.RawPressure(c.ctx, c.mode)
	if err != nil {
		return Pressure{}, c.fail(err)
	}
	c.advance(stagePressureRead)
	p, err := CompensatePressure(c.cal, temp, up, c.mode)
	if err != nil {
		return Pressure{}, c.fail(err)
	}
	c.advance(stageCompensated)
	if snsctx.IsVerbose(c.ctx) {
		c.log.Debug("bmp180 pressure", "UP", up, "B3", p.B3, "B4", p.B4, "B6", p.B6, "B7", p.B7, "p", p.Pascals)
	}
	return p, nil
}
