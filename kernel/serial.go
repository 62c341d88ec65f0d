package kernel

// Transmitter is the transmit side of a serial port.
type Transmitter interface {
	TransmitterEmpty() bool
	Transmit(b byte) error
}

// WriteSerial sends p one byte at a time, awaiting the transmitter before
// each byte. The wait is woken by the port's transmit-complete interrupt.
func (r *Runtime) WriteSerial(tx Transmitter, p []byte) int {
	for i, b := range p {
		r.Await(r.CreateIOFuture(tx.TransmitterEmpty))
		if err := tx.Transmit(b); err != nil {
			r.fatal(err)
			return i
		}
	}
	return len(p)
}
