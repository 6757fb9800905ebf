package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tendof/accel"
	"github.com/mklimuk/tendof/cmd/sensors/console"
)

var imuCmd = cli.Command{
	Name:    "imu",
	Aliases: []string{"lsm303"},
	Usage:   "LSM303DLHC accelerometer and magnetometer",
	Subcommands: cli.Commands{
		&imuAccelCmd,
		&imuMagCmd,
		&imuCompassCmd,
		&imuConfigCmd,
	},
}

// withIMU opens the bus, configures the sensor and runs fn with it.
func withIMU(c *cli.Context, fn func(ctx context.Context, imu *accel.LSM303DLHC) error) error {
	ctx := commandContext(c)
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	opts, err := s.cfg.IMU.Options()
	if err != nil {
		return console.Fail("configuration error", err)
	}
	imu, err := accel.NewLSM303DLHC(ctx, s.bus, opts...)
	if err != nil {
		return console.Fail("imu initialization error", err)
	}
	return fn(ctx, imu)
}

func formatVector(v accel.Vector) string {
	return fmt.Sprintf("x=%s y=%s z=%s", console.White(v.X), console.White(v.Y), console.White(v.Z))
}

var imuAccelCmd = cli.Command{
	Name:  "accel",
	Usage: "read the accelerometer",
	Action: func(c *cli.Context) error {
		return withIMU(c, func(ctx context.Context, imu *accel.LSM303DLHC) error {
			v, err := imu.ReadAccelerometer(ctx)
			if err != nil {
				return console.Fail("error getting accelerometer read", err)
			}
			ctrl := imu.AccelConfig()
			console.PInfof(console.PictoAccel, "%s (%d axes)", formatVector(v), ctrl.AxisCount())
			return nil
		})
	},
}

var imuMagCmd = cli.Command{
	Name:  "mag",
	Usage: "read the magnetometer",
	Action: func(c *cli.Context) error {
		return withIMU(c, func(ctx context.Context, imu *accel.LSM303DLHC) error {
			v, err := imu.ReadMagnetometer(ctx)
			if err != nil {
				return console.Fail("error getting magnetometer read", err)
			}
			console.PInfof(console.PictoMagnet, "%s", formatVector(v))
			return nil
		})
	},
}

var imuCompassCmd = cli.Command{
	Name:  "compass",
	Usage: "print the compass heading",
	Action: func(c *cli.Context) error {
		return withIMU(c, func(ctx context.Context, imu *accel.LSM303DLHC) error {
			v, err := imu.ReadMagnetometer(ctx)
			if err != nil {
				return console.Fail("error getting magnetometer read", err)
			}
			console.PInfof(console.PictoCompass, "%s° (%.4f rad)", console.White(fmt.Sprintf("%.1f", accel.HeadingDegrees(v))), accel.Heading(v))
			return nil
		})
	},
}

var imuConfigCmd = cli.Command{
	Name:  "config",
	Usage: "read back the configuration registers",
	Action: func(c *cli.Context) error {
		return withIMU(c, func(ctx context.Context, imu *accel.LSM303DLHC) error {
			if err := imu.RefreshConfig(ctx); err != nil {
				return console.Fail("could not read configuration", err)
			}
			ctrl := imu.AccelConfig()
			cra, crb, mr := imu.MagConfig()
			console.Printf("CTRL_REG1_A %s\n", ctrl.String())
			console.Printf("CRA_REG_M   %s\n", cra.String())
			console.Printf("CRB_REG_M   %s\n", crb.String())
			console.Printf("MR_REG_M    %s\n", mr.String())
			return nil
		})
	},
}
