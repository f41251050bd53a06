package lifecycle

import (
	"errors"
	"sync"
)

// Waiter extends the lifetime of an event until a set of asynchronous
// sub-operations resolves. Each event (install, activate, fetch, push)
// owns its own Waiter; it is passed by reference rather than accessed as
// ambient state so nested and concurrent scenarios stay testable.
type Waiter struct {
	wg sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewWaiter creates an empty waiter.
func NewWaiter() *Waiter {
	return &Waiter{}
}

// Add registers a sub-operation and runs it in its own goroutine.
// Its error, if any, is collected and surfaced by Wait.
func (w *Waiter) Add(fn func() error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(); err != nil {
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
		}
	}()
}

// Wait blocks until every registered sub-operation has resolved and
// returns the collected errors, joined. Sub-operations registered while
// waiting are covered as well.
func (w *Waiter) Wait() error {
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.errs...)
}
