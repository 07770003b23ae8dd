// Package touch turns raw polled touch samples into classified events:
// down, move, up, tap, double-tap, hold and directional gestures with force.
package touch

import (
	"fmt"
	"time"

	"github.com/odvcencio/glint/pkg/ui/geom"
)

// Kind identifies a touch event.
type Kind int

const (
	KindDown Kind = iota
	KindMove
	KindUp
	KindTap
	KindDoubleTap
	KindHold
	KindGesture
)

var kindNames = [...]string{"down", "move", "up", "tap", "double_tap", "hold", "gesture"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Direction is an 8-way compass bucket. Screen y grows downward.
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirUpRight
	DirRight
	DirDownRight
	DirDown
	DirDownLeft
	DirLeft
	DirUpLeft
)

var directionNames = [...]string{"none", "up", "up-right", "right", "down-right", "down", "down-left", "left", "up-left"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Classify buckets a displacement. An axis counts only when its magnitude
// exceeds threshold; both axes together give a diagonal.
func Classify(dx, dy, threshold int) Direction {
	h, v := 0, 0
	switch {
	case dx > threshold:
		h = 1
	case dx < -threshold:
		h = -1
	}
	switch {
	case dy > threshold:
		v = 1
	case dy < -threshold:
		v = -1
	}
	switch {
	case v < 0 && h == 0:
		return DirUp
	case v < 0 && h > 0:
		return DirUpRight
	case v == 0 && h > 0:
		return DirRight
	case v > 0 && h > 0:
		return DirDownRight
	case v > 0 && h == 0:
		return DirDown
	case v > 0 && h < 0:
		return DirDownLeft
	case v == 0 && h < 0:
		return DirLeft
	case v < 0 && h < 0:
		return DirUpLeft
	}
	return DirNone
}

// maxForce caps gesture force below 1.
const maxForce = 0.99

// Force maps stroke duration to a force in (0, 0.99]. Strokes faster than a
// seventh of a second saturate.
func Force(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return maxForce
	}
	return min(maxForce, (time.Second.Seconds()/7)/elapsed.Seconds())
}

// Event is one classified touch event.
type Event struct {
	Kind  Kind
	Point geom.Point
	Time  time.Time

	// Gesture only.
	Direction Direction
	Force     float64
}

func (e Event) String() string {
	if e.Kind == KindGesture {
		return fmt.Sprintf("%s %s %.2f at %d,%d", e.Kind, e.Direction, e.Force, e.Point.X, e.Point.Y)
	}
	return fmt.Sprintf("%s at %d,%d", e.Kind, e.Point.X, e.Point.Y)
}
