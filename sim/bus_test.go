package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_NoDevice(t *testing.T) {
	bus := NewBus()
	_, err := bus.ReadRegisterByte(context.Background(), 0x42, 0x00)
	assert.ErrorIs(t, err, ErrNoAck)
}

func TestBus_Fault(t *testing.T) {
	bus := NewBoard()
	boom := errors.New("boom")
	bus.Fail(BMP180Address, boom)
	err := bus.WriteRegisterByte(context.Background(), BMP180Address, 0xF4, 0x2E)
	assert.ErrorIs(t, err, boom)
	bus.Fail(BMP180Address, nil)
	assert.NoError(t, bus.WriteRegisterByte(context.Background(), BMP180Address, 0xF4, 0x2E))
}

func TestBMP180_Conversions(t *testing.T) {
	ctx := context.Background()
	bus := NewBoard()

	id, err := bus.ReadRegisterByte(ctx, BMP180Address, 0xD0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x55), id)

	require.NoError(t, bus.WriteRegisterByte(ctx, BMP180Address, 0xF4, 0x2E))
	msb, _ := bus.ReadRegisterByte(ctx, BMP180Address, 0xF6)
	lsb, _ := bus.ReadRegisterByte(ctx, BMP180Address, 0xF7)
	assert.Equal(t, uint16(27898), uint16(msb)<<8|uint16(lsb))

	require.NoError(t, bus.WriteRegisterByte(ctx, BMP180Address, 0xF4, 0x34))
	dev := bus.Device(BMP180Address)
	assert.Equal(t, []byte{0x5D, 0x23, 0x00}, []byte{dev.Get(0xF6), dev.Get(0xF7), dev.Get(0xF8)})

	require.NoError(t, bus.WriteRegisterByte(ctx, BMP180Address, 0xF4, 0x34|3<<6))
	raw := uint32(dev.Get(0xF6))<<16 | uint32(dev.Get(0xF7))<<8 | uint32(dev.Get(0xF8))
	assert.Equal(t, uint32(23843), raw>>5)
}

func TestBus_RecordsOps(t *testing.T) {
	ctx := context.Background()
	bus := NewBoard()
	_, _ = bus.ReadRegisterByte(ctx, LSM303AccelAddress, 0x27)
	_ = bus.WriteRegisterByte(ctx, LSM303MagAddress, 0x02, 0x00)
	assert.Equal(t, []Op{
		{Address: LSM303AccelAddress, Register: 0x27, Value: 0x0F},
		{Write: true, Address: LSM303MagAddress, Register: 0x02, Value: 0x00},
	}, bus.Ops())
	assert.Equal(t, int64(1), bus.MaxInFlight())
}
