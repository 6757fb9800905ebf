// Package config holds the settings of the sensors CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/accel"
	"github.com/mklimuk/tendof/environment"
	"github.com/mklimuk/tendof/i2c"
)

// Version is injected at build time.
var Version = "dev"

const DefaultPath = "sensors.yaml"

// Adapters the CLI knows how to open.
const (
	AdapterGeneric = "generic"
	AdapterMCP2221 = "mcp2221"
	AdapterNanoPi  = "nanopi"
	AdapterRaspi   = "raspi"
	AdapterSim     = "sim"
)

var adapters = []string{AdapterGeneric, AdapterMCP2221, AdapterNanoPi, AdapterRaspi, AdapterSim}

type Config struct {
	Adapter string `yaml:"adapter"`
	// Device is the periph.io bus name used by the generic adapter; empty
	// selects the first bus available.
	Device string `yaml:"device"`
	// BusSpeedKHz sets the clock of the generic bus; 0 keeps the kernel setting.
	BusSpeedKHz int `yaml:"bus_speed_khz"`
	// MCP2221Index selects one of several attached bridges (see "usb detect");
	// -1 requires exactly one.
	MCP2221Index int `yaml:"mcp2221_index"`
	// GobotBus is the bus number for gobot platforms, -1 for the platform default.
	GobotBus           int           `yaml:"gobot_bus"`
	ArbitrationTimeout time.Duration `yaml:"arbitration_timeout"`
	RetryLimit         int           `yaml:"retry_limit"`
	Barometer          Barometer     `yaml:"barometer"`
	IMU                IMU           `yaml:"imu"`
	Monitor            Monitor       `yaml:"monitor"`
}

type Barometer struct {
	Address           byte                     `yaml:"address"`
	Oversampling      environment.Oversampling `yaml:"oversampling"`
	TemperatureSettle time.Duration            `yaml:"temperature_settle"`
	// Calibration replaces the coefficients stored in the sensor.
	Calibration *environment.Calibration `yaml:"calibration,omitempty"`
	SeaLevel    float64                  `yaml:"sea_level"`
}

type IMU struct {
	AccelAddress byte   `yaml:"accel_address"`
	MagAddress   byte   `yaml:"mag_address"`
	DataRate     string `yaml:"data_rate"`
	Axes         string `yaml:"axes"`
	LowPower     bool   `yaml:"low_power"`
	MagRate      string `yaml:"mag_rate"`
	MagGain      string `yaml:"mag_gain"`
	MagMode      string `yaml:"mag_mode"`
	Temperature  bool   `yaml:"temperature"`
}

type Monitor struct {
	Interval time.Duration `yaml:"interval"`
}

func Default() Config {
	return Config{
		Adapter:            AdapterGeneric,
		MCP2221Index:       -1,
		GobotBus:           -1,
		ArbitrationTimeout: i2c.DefaultArbitrationTimeout,
		RetryLimit:         3,
		Barometer: Barometer{
			Address:           environment.BMP180Address,
			Oversampling:      environment.UltraLowPower,
			TemperatureSettle: environment.DefaultTemperatureSettle,
			SeaLevel:          environment.SeaLevelPressure,
		},
		IMU: IMU{
			AccelAddress: accel.AccelAddress,
			MagAddress:   accel.MagAddress,
			DataRate:     accel.Accel10Hz.String(),
			Axes:         "xyz",
			MagRate:      accel.Mag220Hz.String(),
			MagGain:      "8.1",
			MagMode:      "continuous",
		},
		Monitor: Monitor{
			Interval: 5 * time.Second,
		},
	}
}

// Load reads path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(adapters, c.Adapter) {
		errs = append(errs, fmt.Errorf("unknown adapter %q", c.Adapter))
	}
	if c.BusSpeedKHz < 0 || c.BusSpeedKHz > 3400 {
		errs = append(errs, fmt.Errorf("bus speed %d kHz out of range", c.BusSpeedKHz))
	}
	if c.MCP2221Index < -1 {
		errs = append(errs, fmt.Errorf("invalid mcp2221 index %d", c.MCP2221Index))
	}
	if c.ArbitrationTimeout < 0 {
		errs = append(errs, errors.New("arbitration timeout cannot be negative"))
	}
	if c.RetryLimit < 1 {
		errs = append(errs, errors.New("retry limit must be at least 1"))
	}
	if !c.Barometer.Oversampling.Valid() {
		errs = append(errs, fmt.Errorf("invalid oversampling mode %d", byte(c.Barometer.Oversampling)))
	}
	if c.Barometer.SeaLevel <= 0 {
		errs = append(errs, errors.New("sea level pressure must be positive"))
	}
	if _, err := c.IMU.Options(); err != nil {
		errs = append(errs, err)
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", tendof.ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// BusSpeed is the configured generic bus clock, 0 when unset.
func (c Config) BusSpeed() physic.Frequency {
	return physic.Frequency(c.BusSpeedKHz) * physic.KiloHertz
}

// Options translates the barometer settings into driver options.
func (b Barometer) Options() []environment.BMP180Opt {
	opts := []environment.BMP180Opt{
		environment.WithBMP180Address(b.Address),
		environment.WithOversampling(b.Oversampling),
		environment.WithTemperatureSettle(b.TemperatureSettle),
	}
	if b.Calibration != nil {
		opts = append(opts, environment.WithCalibration(*b.Calibration))
	}
	return opts
}

// Options translates the IMU settings into driver options.
func (i IMU) Options() ([]accel.LSM303Opt, error) {
	rate, err := accel.ParseAccelDataRate(i.DataRate)
	if err != nil {
		return nil, err
	}
	axes, err := accel.ParseAxes(i.Axes)
	if err != nil {
		return nil, err
	}
	ctrl := accel.NewCtrlReg1A(rate, axes)
	ctrl.SetLowPower(i.LowPower)
	magRate, err := accel.ParseMagRate(i.MagRate)
	if err != nil {
		return nil, err
	}
	gain, err := accel.ParseMagGain(i.MagGain)
	if err != nil {
		return nil, err
	}
	mode, err := accel.ParseMagMode(i.MagMode)
	if err != nil {
		return nil, err
	}
	return []accel.LSM303Opt{
		accel.WithAccelAddress(i.AccelAddress),
		accel.WithMagAddress(i.MagAddress),
		accel.WithAccelConfig(ctrl),
		accel.WithMagRate(magRate, i.Temperature),
		accel.WithMagGain(gain),
		accel.WithMagMode(mode),
	}, nil
}
