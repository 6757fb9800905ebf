package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tendof/accel"
	"github.com/mklimuk/tendof/cmd/sensors/console"
	"github.com/mklimuk/tendof/environment"
)

var monitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "periodically read every sensor on the board; the barometer and the imu poll concurrently",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "time between readings (defaults to the configured monitor interval)",
		},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "stop after this many readings per sensor, 0 runs until interrupted",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := commandContext(c)
		s, err := openSession(c)
		if err != nil {
			return err
		}
		defer s.Close()
		interval := s.cfg.Monitor.Interval
		if c.IsSet("interval") {
			interval = c.Duration("interval")
		}
		if interval <= 0 {
			return console.Exit(console.ExitConfig, "interval must be positive")
		}
		imuOpts, err := s.cfg.IMU.Options()
		if err != nil {
			return console.Fail("configuration error", err)
		}
		imu, err := accel.NewLSM303DLHC(ctx, s.bus, imuOpts...)
		if err != nil {
			return console.Fail("imu initialization error", err)
		}
		baro, err := environment.NewBMP180(ctx, s.bus, s.cfg.Barometer.Options()...)
		if err != nil {
			return console.Fail("barometer initialization error", err)
		}

		console.Infof("reading every %s, interrupt to stop", console.White(interval))
		lines := make(chan string)
		var wg sync.WaitGroup
		poll := func(name string, read func(ctx context.Context) (string, error)) {
			defer wg.Done()
			every(ctx, interval, c.Int("count"), func() {
				line, err := read(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					slog.Error("reading failed", "sensor", name, "error", err)
					return
				}
				lines <- line
			})
		}
		wg.Add(2)
		go poll("lsm303dlhc", func(ctx context.Context) (string, error) {
			acc, err := imu.ReadAccelerometer(ctx)
			if err != nil {
				return "", err
			}
			mag, err := imu.ReadMagnetometer(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s Acc: %s  %s Mag: %s  %s %.1f°",
				console.PictoAccel, formatVector(acc), console.PictoMagnet, formatVector(mag),
				console.PictoCompass, accel.HeadingDegrees(mag)), nil
		})
		go poll("bmp180", func(ctx context.Context) (string, error) {
			m, err := baro.Read(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s Temp: %s °C  %s Pres: %s Pa",
				console.PictoThermometer, console.White(m.Temperature), console.PictoGauge, console.White(m.Pressure)), nil
		})
		go func() {
			wg.Wait()
			close(lines)
		}()
		for line := range lines {
			console.Printf("%s %s\n", console.Faint(time.Now().Format(time.TimeOnly)), line)
		}
		return nil
	},
}

// every calls fn immediately and then on each tick until ctx is done or fn
// ran count times (count <= 0 means no limit).
func every(ctx context.Context, interval time.Duration, count int, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 1; ; n++ {
		fn()
		if count > 0 && n >= count {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
