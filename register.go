package tendof

import (
	"fmt"
	"reflect"
)

// RegisterConfig is a single control register of a peripheral together with
// the byte it holds.
type RegisterConfig interface {
	Register() byte
	Value() byte
	SetValue(value byte)
}

// CheckConfig makes sure cfg can be used for a register transfer.
func CheckConfig(cfg RegisterConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: got <nil>, expected a RegisterConfig (register address + byte payload)", ErrInvalidConfiguration)
	}
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return fmt.Errorf("%w: got nil %T, expected a RegisterConfig (register address + byte payload)", ErrInvalidConfiguration, cfg)
	}
	return nil
}
