// Package lifecycle implements the worker lifecycle: precache install,
// generation sweep on activation, and the event-lifetime coordination
// both phases depend on.
//
// The hosting runtime guarantees that install and activate run to full
// completion before the next phase begins, but only if the worker
// explicitly extends each event's lifetime to cover every asynchronous
// sub-operation. The Waiter is that explicit handle: lifecycle steps
// register their pending work on it, and the caller blocks on Wait before
// letting the phase transition finish.
//
// # Control Flow
//
//	w := lifecycle.NewWaiter()
//	installer.Run(ctx, w)
//	if err := w.Wait(); err != nil {
//		// install failed, the new version never activates
//	}
//
//	w = lifecycle.NewWaiter()
//	sweeper.Run(ctx, w)
//	if err := w.Wait(); err != nil {
//		// activation failed
//	}
//
// A failed install is fail-fast: a single missing manifest entry fails the
// whole step, because a partial precache makes offline mode unusable.
// Activation is idempotent: sweeping again under the same version tag
// deletes nothing.
package lifecycle
