package platform

import (
	"errors"
	"fmt"
)

// ErrTransmitterBusy indicates a byte was written while the UART transmit
// holding register was still full.
var ErrTransmitterBusy = errors.New("platform: transmitter busy")

// FatalError is the panic value raised by Machine.Fatal.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("panic called with error: %s", e.Msg)
}
