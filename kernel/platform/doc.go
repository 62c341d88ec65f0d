// Package platform defines the collaborators the kernel core consumes from the
// machine it runs on, and a simulated machine that provides them on a hosted
// Go toolchain.
//
// # Collaborators
//
//   - CPU: DisableInterrupts, EnableInterrupts and Halt, the only intrinsics
//     the core needs.
//   - InterruptController: Register(vector, handler) installs an interrupt
//     service routine.
//   - Fataler: Fatal(msg) reports an unrecoverable error and never returns.
//
// Guard wraps a body in a guarded section: interrupts are disabled on entry
// and re-enabled on every exit path, including panics. Guarded sections do
// not nest.
//
// # Simulated Machine
//
// Machine models a single CPU whose interrupts are delivered by other
// goroutines:
//
//	m := platform.NewMachine(os.Stdout)
//	m.Register(platform.VectorTimer, rt.OnTick)
//	go m.RunTimer(ctx, platform.VectorTimer, clock.Frequency)
//
// The interrupt mask is a mutex. Delivery takes the mask before running a
// handler, so handlers run masked and never overlap a guarded section. Halt
// returns once an interrupt has been delivered since the previous Halt
// returned, which mirrors a pending interrupt waking the CPU straight out of
// hlt.
//
// Fatal logs the message, writes it to the console and panics with a
// *FatalError in place of halting the CPU forever.
package platform
