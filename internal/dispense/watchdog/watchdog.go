// Package watchdog arms a per-dispense timer that fires when the hardware
// never reports a terminal status.
package watchdog

import (
	"sync"
	"time"

	"github.com/openpour/openpour/pkg/logger"
)

// TimeoutHandler is invoked once when an armed dispense exceeds the deadline
type TimeoutHandler func(logID uint)

// Watchdog tracks in-flight dispenses. Arm starts a timer for a log id,
// Disarm stops it. A fired timer removes itself before calling the handler,
// so a late Disarm is a no-op.
type Watchdog struct {
	timeout time.Duration

	mu      sync.Mutex
	timers  map[uint]*time.Timer
	handler TimeoutHandler
}

// New creates a watchdog with the given dispense deadline
func New(timeout time.Duration) *Watchdog {
	return &Watchdog{
		timeout: timeout,
		timers:  make(map[uint]*time.Timer),
	}
}

// SetHandler registers the timeout callback. Must be called before Arm.
func (w *Watchdog) SetHandler(handler TimeoutHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = handler
}

// Arm starts the deadline timer for a dispense. Re-arming an id resets
// its timer.
func (w *Watchdog) Arm(logID uint) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.timers[logID]; ok {
		existing.Stop()
	}

	w.timers[logID] = time.AfterFunc(w.timeout, func() {
		w.fire(logID)
	})
}

// Disarm cancels the timer for a dispense that reached a terminal state
func (w *Watchdog) Disarm(logID uint) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[logID]; ok {
		timer.Stop()
		delete(w.timers, logID)
	}
}

// Armed reports whether a dispense is currently being watched
func (w *Watchdog) Armed(logID uint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[logID]
	return ok
}

func (w *Watchdog) fire(logID uint) {
	w.mu.Lock()
	if _, ok := w.timers[logID]; !ok {
		// Disarmed between timer expiry and lock acquisition
		w.mu.Unlock()
		return
	}
	delete(w.timers, logID)
	handler := w.handler
	w.mu.Unlock()

	if handler == nil {
		logger.Logger.Warn().
			Uint("log_id", logID).
			Msg("Watchdog fired with no handler registered")
		return
	}

	logger.Logger.Warn().
		Uint("log_id", logID).
		Dur("timeout", w.timeout).
		Msg("Dispense deadline exceeded")

	handler(logID)
}
