package browser

import (
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

var (
	// ErrTimeout is returned when a page interaction does not complete within
	// its bound.
	ErrTimeout = errors.New("browser: operation timed out")

	// ErrNotStarted is returned for page operations before Start succeeded.
	ErrNotStarted = errors.New("browser: session not started")

	// ErrStopped is returned for operations submitted after Stop.
	ErrStopped = errors.New("browser: session stopped")
)

// IsTimeout reports whether err is an interaction timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// mapError translates Playwright errors into this package's sentinels.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
