package sim

import (
	"image"
	"image/color"
	"testing"
	"time"

	tcellv2 "github.com/gdamore/tcell/v2"

	"github.com/odvcencio/glint/pkg/ui/input"
)

func TestDevice_Size(t *testing.T) {
	dev := New(40, 12)
	if err := dev.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer dev.Fini()

	w, h := dev.Size()
	if w != 40 || h != 24 {
		t.Errorf("Size() = (%d, %d), want (40, 24)", w, h)
	}
}

func TestDevice_ResizeBeforeInit(t *testing.T) {
	dev := New(40, 12)
	dev.Resize(20, 8)
	if err := dev.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer dev.Fini()

	if w, h := dev.Size(); w != 20 || h != 16 {
		t.Errorf("Size() = (%d, %d), want (20, 16)", w, h)
	}

	dev.Resize(30, 10)
	if w, h := dev.Size(); w != 30 || h != 20 {
		t.Errorf("Size() after Resize = (%d, %d), want (30, 20)", w, h)
	}
}

func TestDevice_FlushHalfBlocks(t *testing.T) {
	dev := New(4, 2)
	if err := dev.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer dev.Fini()

	frame := image.NewRGBA(image.Rect(0, 0, 4, 4))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	frame.SetRGBA(1, 0, red)
	frame.SetRGBA(1, 1, blue)

	if err := dev.Flush(frame, image.Rect(0, 0, 4, 2)); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got := dev.CaptureRune(1, 0); got != '▀' {
		t.Errorf("cell rune = %q, want half block", got)
	}
	if got := dev.CapturePixel(1, 0); got != red {
		t.Errorf("upper pixel = %v, want red", got)
	}
	if got := dev.CapturePixel(1, 1); got != blue {
		t.Errorf("lower pixel = %v, want blue", got)
	}
	if len(dev.Flushes()) != 1 {
		t.Errorf("Flushes = %v", dev.Flushes())
	}
}

func TestDevice_TouchSensor(t *testing.T) {
	dev := New(10, 5)
	if err := dev.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer dev.Fini()

	dev.InjectTouch(3, 6)
	waitFor(t, func() bool {
		_, _, ok := dev.Sample()
		return ok
	})
	x, y, _ := dev.Sample()
	if x != 3 || y != 6 {
		t.Errorf("Sample = (%d,%d), want (3,6)", x, y)
	}

	dev.InjectRelease(3, 6)
	waitFor(t, func() bool {
		_, _, ok := dev.Sample()
		return !ok
	})
}

func TestDevice_KeysBecomeButtons(t *testing.T) {
	dev := New(10, 5)
	if err := dev.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer dev.Fini()

	dev.InjectKey(tcellv2.KeyUp, 0)
	ev := dev.PollEvent()
	be, ok := ev.(input.ButtonEvent)
	if !ok || be.Button != input.ButtonUp || !be.Pressed {
		t.Fatalf("first event = %#v", ev)
	}
	ev = dev.PollEvent()
	if be, ok := ev.(input.ButtonEvent); !ok || be.Pressed {
		t.Fatalf("second event = %#v", ev)
	}

	dev.InjectKeyRune('q')
	ev = dev.PollEvent()
	if ke, ok := ev.(input.KeyEvent); !ok || ke.Rune != 'q' || !ke.Pressed {
		t.Fatalf("key event = %#v", ev)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
