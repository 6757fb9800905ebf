package console

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/tendof"
)

// Exit codes of the sensors cli.
const (
	ExitFailure = 1
	// ExitConfig covers invalid flags and configuration.
	ExitConfig = 2
	// ExitBus means the bus or a device on it did not answer.
	ExitBus = 3
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail reports err after what and picks the exit code from the error kind.
func Fail(what string, err error) cli.ExitCoder {
	return Exit(ExitCode(err), "%s: %s", what, Red(err))
}

func ExitCode(err error) int {
	switch {
	case errors.Is(err, tendof.ErrInvalidConfiguration):
		return ExitConfig
	case errors.Is(err, tendof.ErrTransport), errors.Is(err, tendof.ErrArbitrationTimeout), errors.Is(err, tendof.ErrBusBusy):
		return ExitBus
	}
	return ExitFailure
}
