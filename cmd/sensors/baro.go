package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tendof/cmd/sensors/console"
	"github.com/mklimuk/tendof/environment"
)

// raw values reproducing the datasheet example in test mode
const (
	testUT = 27898
	testUP = 23843
)

var baroCmd = cli.Command{
	Name:    "baro",
	Aliases: []string{"bmp180"},
	Usage:   "BMP180 barometer",
	Subcommands: cli.Commands{
		&baroReadCmd,
		&baroCalibrationCmd,
		&baroCompareCmd,
	},
}

var baroReadCmd = cli.Command{
	Name:  "read",
	Usage: "read temperature and pressure",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "oversampling: ultra-low-power, standard, high-resolution, ultra-high-resolution (or 0..3)",
		},
		&cli.BoolFlag{
			Name:  "test",
			Usage: "use datasheet calibration and raw values instead of the device",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		cfg, err := settings(c)
		if err != nil {
			return err
		}
		opts := cfg.Barometer.Options()
		if c.IsSet("mode") {
			mode, err := environment.ParseOversampling(c.String("mode"))
			if err != nil {
				return console.Fail("invalid oversampling", err)
			}
			opts = append(opts, environment.WithOversampling(mode))
		}
		var sensor *environment.BMP180
		if c.Bool("test") {
			sensor, err = environment.NewBMP180(ctx, nil, append(opts, environment.WithTestMode(testUT, testUP))...)
		} else {
			s, serr := openSession(c)
			if serr != nil {
				return serr
			}
			defer s.Close()
			sensor, err = environment.NewBMP180(ctx, s.bus, opts...)
		}
		if err != nil {
			return console.Fail("barometer initialization error", err)
		}
		m, err := sensor.Read(ctx)
		if err != nil {
			return console.Fail("error getting barometer read", err)
		}
		printBarometer(m, cfg.Barometer.SeaLevel)
		return nil
	},
}

func printBarometer(m environment.Measurement, seaLevel float64) {
	console.PInfof(console.PictoThermometer, "%s °C", console.White(m.Temperature))
	console.PInfof(console.PictoGauge, "%s Pa (%s)", console.White(m.Pressure), m.Mode)
	console.PInfof(console.PictoMountain, "%s m", console.White(int(environment.Altitude(m.Pressure, seaLevel))))
}

var baroCalibrationCmd = cli.Command{
	Name:  "calibration",
	Usage: "print the factory calibration coefficients",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "test",
			Usage: "print the datasheet example coefficients",
		},
	},
	Action: func(c *cli.Context) error {
		cal := environment.DefaultCalibration()
		if !c.Bool("test") {
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()
			cal, err = environment.AcquireCalibration(commandContext(c), s.bus, s.cfg.Barometer.Address)
			if err != nil {
				return console.Fail("could not read calibration", err)
			}
		}
		return printYAML(cal)
	},
}

var baroCompareCmd = cli.Command{
	Name:  "compare",
	Usage: "read the barometer with this driver and with periph.io's bmxx80 (generic adapter only)",
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		if s.generic == nil {
			return console.Exit(console.ExitConfig, "compare needs the generic adapter, got %s", console.Yellow(s.cfg.Adapter))
		}
		sensor, err := environment.NewBMP180(ctx, s.bus, s.cfg.Barometer.Options()...)
		if err != nil {
			return console.Fail("barometer initialization error", err)
		}
		m, err := sensor.Read(ctx)
		if err != nil {
			return console.Fail("error getting barometer read", err)
		}
		temp, pressure, err := environment.ReadWithPeriph(ctx, s.bus, s.generic.Bus(), s.cfg.Barometer.Address)
		if err != nil {
			return console.Fail("error getting bmxx80 read", err)
		}
		console.Printf("%s\t%s\t%s\n", console.Bold("driver"), console.Bold("°C"), console.Bold("Pa"))
		console.Printf("tendof\t%.1f\t%d\n", m.Temperature, m.Pressure)
		console.Printf("bmxx80\t%.2f\t%d\n", temp, pressure)
		return nil
	},
}
