// Package browser owns live browser sessions.
//
// A Driver wraps one page handle behind a dedicated worker goroutine: every
// page operation is submitted as a job and executed in FIFO order, so the
// non-reentrant Playwright API is never called concurrently for one page.
// Drivers come in two modes. Persistent drivers reuse a profile directory
// across runs so login state survives; ephemeral drivers launch a fresh,
// isolated browser and are torn down after a single use.
//
// Actions are normalized, checked by the safety gate and then dispatched. When
// the primary locate-and-act attempt times out, a fallback chain keyed on the
// selector text probes alternative locators and acts on the first visible one.
package browser
