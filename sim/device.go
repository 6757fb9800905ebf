package sim

import (
	"sync"
)

// WriteBehaviorFunc reacts to a register write. It runs with the device locked
// and may update other registers through regs.
type WriteBehaviorFunc func(regs *[256]byte, register, value byte)

// Device is a 256 byte register file with an optional write hook.
type Device struct {
	mx      sync.Mutex
	regs    [256]byte
	onWrite WriteBehaviorFunc
}

// NewDevice creates a plain register file. behavior may be nil.
func NewDevice(behavior WriteBehaviorFunc) *Device {
	return &Device{onWrite: behavior}
}

// Set stores values starting at register.
func (d *Device) Set(register byte, values ...byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	for i, v := range values {
		d.regs[register+byte(i)] = v
	}
}

// Get returns the current content of register.
func (d *Device) Get(register byte) byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.regs[register]
}

func (d *Device) read(register byte) byte {
	return d.Get(register)
}

func (d *Device) write(register, value byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.regs[register] = value
	if d.onWrite != nil {
		d.onWrite(&d.regs, register, value)
	}
}
