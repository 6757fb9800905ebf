package tendof

import (
	"context"
)

// AddressableReader reads raw bytes from the device at address.
type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

// AddressableWriter writes raw bytes to the device at address. Release asks the
// underlying engine to abandon a stuck transfer.
type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a raw, byte-stream oriented I2C master such as a USB bridge.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// Transport is the register level boundary every bus operation is composed of.
type Transport interface {
	ReadRegisterByte(ctx context.Context, address, register byte) (byte, error)
	WriteRegisterByte(ctx context.Context, address, register, value byte) error
}

// Transaction is a span of exclusive bus ownership against one device address.
// It must be ended by the same caller that began it.
type Transaction interface {
	Address() byte
	ReadByteData(ctx context.Context, register byte) (byte, error)
	// ReadWordData reads base and base+1. The first byte is the high byte unless
	// flip is set.
	ReadWordData(ctx context.Context, base byte, flip bool) (uint16, error)
	WriteByteData(ctx context.Context, register, value byte) error
	End() error
}

// SharedBus arbitrates one physical bus between concurrent callers.
type SharedBus interface {
	Begin(ctx context.Context, address byte) (Transaction, error)
	LoadConfiguration(ctx context.Context, cfg RegisterConfig, address ...byte) error
	StoreConfiguration(ctx context.Context, cfg RegisterConfig, address ...byte) error
}
