package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobotI2C "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/tendof"
)

var _ tendof.Transport = &GobotBus{}

// GobotBus drives the bus through a gobot platform adaptor (nanopi, raspi...).
// Connections are opened lazily, one per device address.
type GobotBus struct {
	mx        sync.Mutex
	connector gobotI2C.Connector
	busNr     int
	conns     map[byte]gobotI2C.Connection
}

// NewGobotBus uses bus number busNr of connector; a negative number selects
// the adaptor's default bus.
func NewGobotBus(connector gobotI2C.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]gobotI2C.Connection),
	}
}

func (b *GobotBus) ReadRegisterByte(ctx context.Context, address, register byte) (byte, error) {
	conn, err := b.connection(address)
	if err != nil {
		return 0, err
	}
	value, err := conn.ReadByteData(register)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#x of %#x: %w", register, address, err)
	}
	return value, nil
}

func (b *GobotBus) WriteRegisterByte(ctx context.Context, address, register, value byte) error {
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	err = conn.WriteByteData(register, value)
	if err != nil {
		return fmt.Errorf("could not write register %#x of %#x: %w", register, address, err)
	}
	return nil
}

func (b *GobotBus) connection(address byte) (gobotI2C.Connection, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#x on bus %d: %w", address, b.busNr, err)
	}
	b.conns[address] = conn
	return conn, nil
}

// Close closes every connection opened so far.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for addr, conn := range b.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close connection to %#x: %w", addr, err))
		}
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}
