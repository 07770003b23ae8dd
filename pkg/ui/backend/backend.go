// Package backend defines the display device abstraction.
// This abstraction allows swapping between a terminal-hosted device (tcell),
// a simulation device (testing), and an in-memory headless device.
package backend

import (
	"image"

	"github.com/odvcencio/glint/pkg/ui/input"
)

//go:generate mockgen -package=compositor -destination=../compositor/mock_device_test.go github.com/odvcencio/glint/pkg/ui/backend Device

// Device is the physical raster display.
// Implementations must be safe for Flush calls from any goroutine; the
// compositor serializes them under its surface lock.
type Device interface {
	// Init prepares the device for output.
	Init() error

	// Fini releases the device.
	Fini()

	// Size returns the display dimensions in pixels.
	Size() (width, height int)

	// Flush pushes the pixels of frame inside r to the display.
	// r is already clamped to the display bounds.
	Flush(frame *image.RGBA, r image.Rectangle) error
}

// Sensor is a polled touch panel.
type Sensor interface {
	// Sample returns the current contact position, or ok=false when nothing
	// is touching the panel.
	Sample() (x, y int, ok bool)
}

// InputSource yields button and keyboard events.
type InputSource interface {
	// PollEvent blocks until an event is available and returns it.
	// Returns nil if the source is shutting down.
	PollEvent() input.Event
}
