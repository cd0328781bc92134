// Package stackerr names the core's drop taxonomy (out-of-memory,
// queue-full, device-down, device-error, unrouted, filtered) as a
// single place adapters and the host binary can wrap low-level errors
// against and classify for logging/metrics, instead of each adapter
// inventing its own label strings.
package stackerr

import (
	"errors"
	"fmt"

	"github.com/kstaniek/xcan-gateway/internal/frame"
	"github.com/kstaniek/xcan-gateway/internal/queue"
)

// Category is one of the gateway's six drop reasons.
type Category string

const (
	CategoryOutOfMemory Category = "out_of_memory"
	CategoryQueueFull   Category = "queue_full"
	CategoryDeviceDown  Category = "device_down"
	CategoryDeviceError Category = "device_error"
	CategoryUnrouted    Category = "unrouted"
	CategoryFiltered    Category = "filtered"
	CategoryUnknown     Category = "unknown"
)

// Re-exported sentinels so callers outside internal/frame and
// internal/queue don't need to import those packages just to
// errors.Is against the two allocation-path failures.
var (
	ErrOutOfMemory = frame.ErrOutOfMemory
	ErrQueueFull   = queue.ErrFull
)

// ErrDeviceDown marks a destination whose link_state is down; a router
// or adapter wraps its own error with %w against this sentinel.
var ErrDeviceDown = errors.New("stackerr: device down")

// ErrDeviceError marks a permanent per-frame send failure reported by
// an adapter (not would-block, not a device-down condition).
var ErrDeviceError = errors.New("stackerr: device send error")

// Classify maps err to the drop category it belongs to, for structured
// logging and for picking a metrics label without scattering
// errors.Is chains at every call site.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrOutOfMemory):
		return CategoryOutOfMemory
	case errors.Is(err, ErrQueueFull):
		return CategoryQueueFull
	case errors.Is(err, ErrDeviceDown):
		return CategoryDeviceDown
	case errors.Is(err, ErrDeviceError):
		return CategoryDeviceError
	default:
		return CategoryUnknown
	}
}

// Wrap builds an error that classifies as cat while preserving cause
// via %w, for adapters translating a driver-level failure into the
// core's taxonomy.
func Wrap(cat Category, cause error) error {
	var sentinel error
	switch cat {
	case CategoryOutOfMemory:
		sentinel = ErrOutOfMemory
	case CategoryQueueFull:
		sentinel = ErrQueueFull
	case CategoryDeviceDown:
		sentinel = ErrDeviceDown
	case CategoryDeviceError:
		sentinel = ErrDeviceError
	default:
		return cause
	}
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
