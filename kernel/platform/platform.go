package platform

// Vector is an interrupt vector number.
type Vector uint8

// Vectors used by the kernel core, after the PICs are remapped to 0x20/0x28.
const (
	// VectorUART is COM1 (IRQ 4 on the primary PIC).
	VectorUART Vector = 0x24

	// VectorTimer is the RTC periodic interrupt (IRQ 8 on the secondary PIC).
	VectorTimer Vector = 0x28
)

// Handler is an interrupt service routine. It runs with interrupts masked.
type Handler func()

// Mask controls interrupt delivery.
type Mask interface {
	DisableInterrupts()
	EnableInterrupts()
}

// CPU is the set of intrinsics the kernel core needs from the processor.
type CPU interface {
	Mask
	// Halt idles until the next interrupt has been serviced.
	Halt()
}

// InterruptController installs interrupt service routines.
type InterruptController interface {
	Register(v Vector, h Handler)
}

// Fataler reports an unrecoverable error. Fatal never returns.
type Fataler interface {
	Fatal(msg string)
}

// Platform bundles every collaborator the kernel runtime consumes.
type Platform interface {
	CPU
	InterruptController
	Fataler
}

// Guard runs body with interrupts disabled and re-enables them on every exit
// path.
func Guard(m Mask, body func()) {
	m.DisableInterrupts()
	defer m.EnableInterrupts()
	body()
}
