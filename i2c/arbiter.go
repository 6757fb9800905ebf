package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/tendof"
	"github.com/mklimuk/tendof/snsctx"
)

const DefaultArbitrationTimeout = 5 * time.Second

var _ tendof.SharedBus = &Arbiter{}

type ArbiterOpts struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

type ArbiterOpt func(*ArbiterOpts)

// WithTimeout bounds the wait in Begin. Zero waits until the context is done.
func WithTimeout(d time.Duration) ArbiterOpt {
	return func(o *ArbiterOpts) {
		o.Timeout = d
	}
}

func WithLogger(l *slog.Logger) ArbiterOpt {
	return func(o *ArbiterOpts) {
		o.Logger = l
	}
}

// Arbiter serializes access to a single transport. A caller owns the bus from
// Begin until End of the returned transaction; primitives issued through the
// transaction never interleave with anybody else's.
type Arbiter struct {
	transport tendof.Transport
	config    ArbiterOpts
	// token holds one element while the bus is owned
	token chan struct{}

	mx      sync.Mutex
	owner   uint64
	seq     uint64
	last    byte
	hasLast bool
}

func NewArbiter(transport tendof.Transport, opts ...ArbiterOpt) *Arbiter {
	config := ArbiterOpts{
		Timeout: DefaultArbitrationTimeout,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Arbiter{
		transport: transport,
		config:    config,
		token:     make(chan struct{}, 1),
	}
}

// Begin waits until the bus is free and opens a transaction against address.
func (a *Arbiter) Begin(ctx context.Context, address byte) (tendof.Transaction, error) {
	if err := a.acquire(ctx); err != nil {
		return nil, fmt.Errorf("could not begin transaction with %#x: %w", address, err)
	}
	return a.open(ctx, address), nil
}

// Active returns the address of the most recent transaction.
func (a *Arbiter) Active() (byte, bool) {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.last, a.hasLast
}

// ReadByteData reads register in an implicit transaction against the most recently
// active address. The implicit transaction waits for the bus like Begin does, so
// a caller that already holds a transaction must use its Tx instead: calling
// this would wait on itself until the arbitration timeout (or forever with
// WithTimeout(0)).
func (a *Arbiter) ReadByteData(ctx context.Context, register byte) (byte, error) {
	tx, err := a.beginLast(ctx)
	if err != nil {
		return 0, err
	}
	defer a.end(tx)
	return tx.ReadByteData(ctx, register)
}

// ReadWordData reads a word in an implicit transaction. Not for callers holding
// a transaction, see ReadByteData.
func (a *Arbiter) ReadWordData(ctx context.Context, base byte, flip bool) (uint16, error) {
	tx, err := a.beginLast(ctx)
	if err != nil {
		return 0, err
	}
	defer a.end(tx)
	return tx.ReadWordData(ctx, base, flip)
}

// WriteByteData writes register in an implicit transaction. Not for callers
// holding a transaction, see ReadByteData.
func (a *Arbiter) WriteByteData(ctx context.Context, register, value byte) error {
	tx, err := a.beginLast(ctx)
	if err != nil {
		return err
	}
	defer a.end(tx)
	return tx.WriteByteData(ctx, register, value)
}

// LoadConfiguration reads cfg's register from the device into cfg. Without an
// explicit address the most recently active one is used.
func (a *Arbiter) LoadConfiguration(ctx context.Context, cfg tendof.RegisterConfig, address ...byte) error {
	if err := tendof.CheckConfig(cfg); err != nil {
		return err
	}
	tx, err := a.beginConfig(ctx, address)
	if err != nil {
		return err
	}
	defer a.end(tx)
	value, err := tx.ReadByteData(ctx, cfg.Register())
	if err != nil {
		return fmt.Errorf("could not load register %#x: %w", cfg.Register(), err)
	}
	cfg.SetValue(value)
	return nil
}

// StoreConfiguration writes cfg to its register on the device.
func (a *Arbiter) StoreConfiguration(ctx context.Context, cfg tendof.RegisterConfig, address ...byte) error {
	if err := tendof.CheckConfig(cfg); err != nil {
		return err
	}
	tx, err := a.beginConfig(ctx, address)
	if err != nil {
		return err
	}
	defer a.end(tx)
	err = tx.WriteByteData(ctx, cfg.Register(), cfg.Value())
	if err != nil {
		return fmt.Errorf("could not store register %#x: %w", cfg.Register(), err)
	}
	return nil
}

func (a *Arbiter) beginConfig(ctx context.Context, address []byte) (*Tx, error) {
	if len(address) > 0 {
		if err := a.acquire(ctx); err != nil {
			return nil, fmt.Errorf("could not begin transaction with %#x: %w", address[0], err)
		}
		return a.open(ctx, address[0]), nil
	}
	return a.beginLast(ctx)
}

func (a *Arbiter) beginLast(ctx context.Context) (*Tx, error) {
	if err := a.acquire(ctx); err != nil {
		return nil, fmt.Errorf("could not begin implicit transaction: %w", err)
	}
	a.mx.Lock()
	address, ok := a.last, a.hasLast
	a.mx.Unlock()
	if !ok {
		<-a.token
		return nil, tendof.ErrNoActiveAddress
	}
	return a.open(ctx, address), nil
}

func (a *Arbiter) acquire(ctx context.Context) error {
	var timeout <-chan time.Time
	if a.config.Timeout > 0 {
		timer := time.NewTimer(a.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case a.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("%w after %s", tendof.ErrArbitrationTimeout, a.config.Timeout)
	}
}

func (a *Arbiter) open(ctx context.Context, address byte) *Tx {
	a.mx.Lock()
	a.seq++
	a.owner = a.seq
	a.last, a.hasLast = address, true
	tx := &Tx{arbiter: a, id: a.seq, address: address, verbose: snsctx.IsVerbose(ctx)}
	a.mx.Unlock()
	a.config.Logger.Debug("bus acquired", "addr", fmt.Sprintf("%#x", address), "tx", tx.id)
	return tx
}

func (a *Arbiter) end(tx *Tx) {
	_ = tx.End()
}

func (a *Arbiter) release(id uint64) error {
	a.mx.Lock()
	if a.owner != id {
		a.mx.Unlock()
		return tendof.ErrNotOwner
	}
	a.owner = 0
	a.mx.Unlock()
	<-a.token
	a.config.Logger.Debug("bus released", "tx", id)
	return nil
}

func (a *Arbiter) owns(id uint64) bool {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.owner == id
}

// Tx is the ownership token handed out by Begin.
type Tx struct {
	arbiter *Arbiter
	id      uint64
	address byte
	verbose bool
}

func (tx *Tx) Address() byte {
	return tx.address
}

// End releases the bus. Ending a transaction twice returns ErrNotOwner.
func (tx *Tx) End() error {
	return tx.arbiter.release(tx.id)
}

func (tx *Tx) ReadByteData(ctx context.Context, register byte) (byte, error) {
	if !tx.arbiter.owns(tx.id) {
		return 0, tendof.ErrNotOwner
	}
	value, err := tx.arbiter.transport.ReadRegisterByte(ctx, tx.address, register)
	if err != nil {
		return 0, &tendof.TransportError{Op: "read", Address: tx.address, Register: register, Err: err}
	}
	if tx.verbose {
		tx.arbiter.config.Logger.Debug("read", "addr", fmt.Sprintf("%#x", tx.address), "reg", fmt.Sprintf("%#x", register), "value", fmt.Sprintf("%#x", value))
	}
	return value, nil
}

func (tx *Tx) ReadWordData(ctx context.Context, base byte, flip bool) (uint16, error) {
	h, err := tx.ReadByteData(ctx, base)
	if err != nil {
		return 0, err
	}
	l, err := tx.ReadByteData(ctx, base+1)
	if err != nil {
		return 0, err
	}
	if flip {
		return uint16(l)<<8 | uint16(h), nil
	}
	return uint16(h)<<8 | uint16(l), nil
}

func (tx *Tx) WriteByteData(ctx context.Context, register, value byte) error {
	if !tx.arbiter.owns(tx.id) {
		return tendof.ErrNotOwner
	}
	err := tx.arbiter.transport.WriteRegisterByte(ctx, tx.address, register, value)
	if err != nil {
		return &tendof.TransportError{Op: "write", Address: tx.address, Register: register, Err: err}
	}
	if tx.verbose {
		tx.arbiter.config.Logger.Debug("write", "addr", fmt.Sprintf("%#x", tx.address), "reg", fmt.Sprintf("%#x", register), "value", fmt.Sprintf("%#x", value))
	}
	return nil
}
