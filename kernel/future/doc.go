// Package future provides cooperative suspension for kernel code: a Future
// describes a condition to wait for, and Executor.Await halts the CPU until an
// interrupt handler signals that the condition may have changed.
//
// # Variants
//
//   - Sleep: resolves once the tick counter reaches a target. Its context (the
//     target tick) lives on the kernel heap and is freed on completion.
//   - IOReady: resolves when a hardware readiness predicate holds. It owns
//     nothing.
//
// # Waking
//
// The executor keeps a wake flag. Await clears it before every poll and, when
// the future is still pending, halts until the flag is set again. Two
// interrupt paths set it:
//
//   - OnTick (timer): advances the clock, then sets the flag when the
//     first-registered sleep future's target has been reached.
//   - OnWakeEvent (devices): sets the flag unconditionally so IOReady
//     predicates are re-evaluated.
//
// A halted CPU resumes on any interrupt, so a wake is only a hint and the
// predicate is always re-checked.
//
// # Registry
//
// Sleep futures are recorded in a fixed-capacity registry in the order Await
// registers them, and removed when their Await completes. OnTick inspects
// only the first entry. With one outstanding sleep this is exact; with more,
// a later-registered future with an earlier deadline is not woken by the tick
// path until the first entry's deadline passes. Await is a single-outstanding
// wait: it occupies the caller until its future resolves.
package future
