package input

import "testing"

func TestKeyConstantsUnique(t *testing.T) {
	keys := []Key{
		KeyNone, KeyRune, KeyEnter, KeyBackspace, KeyTab, KeyBacktab, KeyEscape,
		KeyUp, KeyDown, KeyLeft, KeyRight, KeyHome, KeyEnd,
		KeyPageUp, KeyPageDown, KeyDelete, KeyCtrlC,
	}
	seen := make(map[Key]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key constant: %d", k)
		}
		seen[k] = true
	}
}

func TestEventInterface(t *testing.T) {
	var _ Event = KeyEvent{}
	var _ Event = ButtonEvent{}
	var _ Event = ResizeEvent{}
}

func TestButtonForKey(t *testing.T) {
	tests := []struct {
		key  Key
		want Button
		ok   bool
	}{
		{KeyUp, ButtonUp, true},
		{KeyEnter, ButtonSelect, true},
		{KeyEscape, ButtonBack, true},
		{KeyRune, ButtonNone, false},
	}
	for _, tt := range tests {
		got, ok := ButtonForKey(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ButtonForKey(%d) = %v,%v want %v,%v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestButtonString(t *testing.T) {
	if ButtonSelect.String() != "select" {
		t.Errorf("String = %q", ButtonSelect.String())
	}
	if Button(99).String() != "unknown" {
		t.Errorf("unknown button String = %q", Button(99).String())
	}
}
