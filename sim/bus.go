// Package sim provides register-map stand-ins for I2C peripherals so drivers
// can run without hardware attached.
//
// Typical usage:
//
//	bus := sim.NewBus()
//	bus.Attach(sim.BMP180Address, sim.NewBMP180(sim.BMP180Datasheet()))
//	arb := i2c.NewArbiter(bus)
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mklimuk/tendof"
)

// ErrNoAck is returned for addresses nothing is attached to.
var ErrNoAck = errors.New("no acknowledge from device")

var _ tendof.Transport = &Bus{}

// Op is a single recorded register transfer.
type Op struct {
	Write    bool
	Address  byte
	Register byte
	Value    byte
}

// Bus is an in-memory transport. It records every transfer and tracks how many
// transfers overlapped, which lets tests assert exclusive bus ownership.
type Bus struct {
	mx      sync.Mutex
	devices map[byte]*Device
	ops     []Op
	faults  map[byte]error
	delay   time.Duration

	inFlight    int64
	maxInFlight int64
}

func NewBus() *Bus {
	return &Bus{
		devices: make(map[byte]*Device),
		faults:  make(map[byte]error),
	}
}

// Attach places dev on the bus at address.
func (b *Bus) Attach(address byte, dev *Device) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.devices[address] = dev
}

// Device returns the device attached at address or nil.
func (b *Bus) Device(address byte) *Device {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.devices[address]
}

// SetDelay makes every transfer take at least d, widening race windows.
func (b *Bus) SetDelay(d time.Duration) {
	b.mx.Lock()
	b.delay = d
	b.mx.Unlock()
}

// Fail makes every transfer to address fail with err until cleared with a nil
// error.
func (b *Bus) Fail(address byte, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err == nil {
		delete(b.faults, address)
		return
	}
	b.faults[address] = err
}

// Ops returns a copy of the recorded transfers.
func (b *Bus) Ops() []Op {
	b.mx.Lock()
	defer b.mx.Unlock()
	out := make([]Op, len(b.ops))
	copy(out, b.ops)
	return out
}

// MaxInFlight is the highest number of transfers observed running at once.
func (b *Bus) MaxInFlight() int64 {
	return atomic.LoadInt64(&b.maxInFlight)
}

func (b *Bus) ReadRegisterByte(ctx context.Context, address, register byte) (byte, error) {
	dev, err := b.enter(ctx, address)
	defer b.leave()
	if err != nil {
		return 0, err
	}
	value := dev.read(register)
	b.record(Op{Address: address, Register: register, Value: value})
	return value, nil
}

func (b *Bus) WriteRegisterByte(ctx context.Context, address, register, value byte) error {
	dev, err := b.enter(ctx, address)
	defer b.leave()
	if err != nil {
		return err
	}
	dev.write(register, value)
	b.record(Op{Write: true, Address: address, Register: register, Value: value})
	return nil
}

func (b *Bus) enter(ctx context.Context, address byte) (*Device, error) {
	current := atomic.AddInt64(&b.inFlight, 1)
	for {
		seen := atomic.LoadInt64(&b.maxInFlight)
		if current <= seen || atomic.CompareAndSwapInt64(&b.maxInFlight, seen, current) {
			break
		}
	}
	b.mx.Lock()
	dev, fault, delay := b.devices[address], b.faults[address], b.delay
	b.mx.Unlock()
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fault != nil {
		return nil, fault
	}
	if dev == nil {
		return nil, fmt.Errorf("%w at %#x", ErrNoAck, address)
	}
	return dev, nil
}

func (b *Bus) leave() {
	atomic.AddInt64(&b.inFlight, -1)
}

func (b *Bus) record(op Op) {
	b.mx.Lock()
	b.ops = append(b.ops, op)
	b.mx.Unlock()
}
