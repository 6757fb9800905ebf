package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/tendof"
)

var _ tendof.Transport = &RegisterTransport{}

// RegisterTransport turns a byte-stream bus (e.g. a USB bridge) into register
// reads and writes: a read selects the register with a one byte write and then
// reads one byte back.
type RegisterTransport struct {
	mx         sync.Mutex
	bus        tendof.I2CBus
	retryLimit int
	buf        []byte
}

// NewRegisterTransport wraps bus. retryLimit is the total number of attempts
// per transfer: a transfer rejected with ErrBusBusy is tried again, after
// asking the bus to release, until retryLimit attempts were made. A limit
// below 2 means no retry.
func NewRegisterTransport(bus tendof.I2CBus, retryLimit int) *RegisterTransport {
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &RegisterTransport{bus: bus, retryLimit: retryLimit, buf: make([]byte, 1)}
}

func (t *RegisterTransport) ReadRegisterByte(ctx context.Context, address, register byte) (byte, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	err := t.retry(ctx, func() error {
		return t.bus.WriteToAddr(ctx, address, []byte{register})
	})
	if err != nil {
		return 0, fmt.Errorf("could not set register pointer: %w", err)
	}
	err = t.retry(ctx, func() error {
		return t.bus.ReadFromAddr(ctx, address, t.buf)
	})
	if err != nil {
		return 0, fmt.Errorf("could not read register content: %w", err)
	}
	return t.buf[0], nil
}

func (t *RegisterTransport) WriteRegisterByte(ctx context.Context, address, register, value byte) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	err := t.retry(ctx, func() error {
		return t.bus.WriteToAddr(ctx, address, []byte{register, value})
	})
	if err != nil {
		return fmt.Errorf("could not write register: %w", err)
	}
	return nil
}

func (t *RegisterTransport) retry(ctx context.Context, op func() error) error {
	var err error
	for i := t.retryLimit; i > 0; i-- {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, tendof.ErrBusBusy) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// try to release the bus
		_ = t.bus.Release(ctx)
	}
	return fmt.Errorf("retry limit reached: %w", err)
}
