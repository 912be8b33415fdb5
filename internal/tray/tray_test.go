package tray

import "testing"

func TestSetStatusBeforeReady(t *testing.T) {
	// The runner can publish events before systray builds the menu;
	// SetStatus must tolerate the missing menu item.
	tr := New()
	tr.SetStatus("processing 25%")
	tr.SetStatus("")
}
