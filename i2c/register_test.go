package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/tendof"
)

// MockI2CBus is a mock implementation of tendof.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestRegisterTransport_Read(t *testing.T) {
	bus := new(MockI2CBus)
	tr := NewRegisterTransport(bus, 1)
	ctx := context.Background()

	bus.On("WriteToAddr", mock.Anything, byte(0x77), []byte{0xD0}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x77), mock.Anything).Return([]byte{0x55}, nil).Once()

	value, err := tr.ReadRegisterByte(ctx, 0x77, 0xD0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x55), value)
	bus.AssertExpectations(t)
}

func TestRegisterTransport_Write(t *testing.T) {
	bus := new(MockI2CBus)
	tr := NewRegisterTransport(bus, 1)

	bus.On("WriteToAddr", mock.Anything, byte(0x19), []byte{0x20, 0x27}).Return(nil).Once()

	require.NoError(t, tr.WriteRegisterByte(context.Background(), 0x19, 0x20, 0x27))
	bus.AssertExpectations(t)
}

func TestRegisterTransport_RetryBusy(t *testing.T) {
	bus := new(MockI2CBus)
	tr := NewRegisterTransport(bus, 3)

	bus.On("WriteToAddr", mock.Anything, byte(0x19), []byte{0x20, 0x27}).Return(tendof.ErrBusBusy).Twice()
	bus.On("Release", mock.Anything).Return(nil).Twice()
	bus.On("WriteToAddr", mock.Anything, byte(0x19), []byte{0x20, 0x27}).Return(nil).Once()

	require.NoError(t, tr.WriteRegisterByte(context.Background(), 0x19, 0x20, 0x27))
	bus.AssertExpectations(t)
}

func TestRegisterTransport_RetryLimit(t *testing.T) {
	bus := new(MockI2CBus)
	tr := NewRegisterTransport(bus, 2)

	bus.On("WriteToAddr", mock.Anything, byte(0x19), mock.Anything).Return(tendof.ErrBusBusy)
	bus.On("Release", mock.Anything).Return(nil)

	err := tr.WriteRegisterByte(context.Background(), 0x19, 0x20, 0x27)
	assert.ErrorIs(t, err, tendof.ErrBusBusy)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 2)
}

func TestRegisterTransport_FatalNotRetried(t *testing.T) {
	bus := new(MockI2CBus)
	tr := NewRegisterTransport(bus, 5)
	nack := errors.New("nack")

	bus.On("WriteToAddr", mock.Anything, byte(0x1E), []byte{0x03}).Return(nack).Once()

	_, err := tr.ReadRegisterByte(context.Background(), 0x1E, 0x03)
	assert.ErrorIs(t, err, nack)
	bus.AssertNotCalled(t, "Release", mock.Anything)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterTransport_BehindArbiter(t *testing.T) {
	bus := new(MockI2CBus)
	arb := NewArbiter(NewRegisterTransport(bus, 1))
	ctx := context.Background()

	bus.On("WriteToAddr", mock.Anything, byte(0x77), []byte{0xF6}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x77), mock.Anything).Return([]byte{0x6C}, nil).Once()
	bus.On("WriteToAddr", mock.Anything, byte(0x77), []byte{0xF7}).Return(nil).Once()
	bus.On("ReadFromAddr", mock.Anything, byte(0x77), mock.Anything).Return([]byte{0xFA}, nil).Once()

	tx, err := arb.Begin(ctx, 0x77)
	require.NoError(t, err)
	ut, err := tx.ReadWordData(ctx, 0xF6, false)
	require.NoError(t, tx.End())
	require.NoError(t, err)
	assert.Equal(t, uint16(27898), ut)
	bus.AssertExpectations(t)
}

func TestRegisterTransport_LimitCountsAttempts(t *testing.T) {
	bus := new(MockI2CBus)
	tr := NewRegisterTransport(bus, 1)

	bus.On("WriteToAddr", mock.Anything, byte(0x19), mock.Anything).Return(tendof.ErrBusBusy)
	bus.On("Release", mock.Anything).Return(nil)

	err := tr.WriteRegisterByte(context.Background(), 0x19, 0x20, 0x27)
	assert.ErrorIs(t, err, tendof.ErrBusBusy)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 1)

	// anything below one is treated as a single attempt
	bus = new(MockI2CBus)
	tr = NewRegisterTransport(bus, 0)
	bus.On("WriteToAddr", mock.Anything, byte(0x19), mock.Anything).Return(tendof.ErrBusBusy)
	bus.On("Release", mock.Anything).Return(nil)

	err = tr.WriteRegisterByte(context.Background(), 0x19, 0x20, 0x27)
	assert.ErrorIs(t, err, tendof.ErrBusBusy)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 1)
}
