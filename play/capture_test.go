package play

import (
	"context"
	"testing"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"after-sign", "after-sign"},
		{"room 1/exit", "room_1_exit"},
		{"  ", "unlabeled"},
		{"v1.2", "v1.2"},
	}
	for _, tt := range tests {
		if got := sanitizeLabel(tt.in); got != tt.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnpremultiply(t *testing.T) {
	img := unpremultiply([]byte{
		64, 32, 0, 128,
		10, 20, 30, 255,
		0, 0, 0, 0,
	}, 3, 1)
	want := []byte{
		127, 63, 0, 128,
		10, 20, 30, 255,
		0, 0, 0, 0,
	}
	for i, b := range want {
		if img.Pix[i] != b {
			t.Fatalf("Pix = %v, want %v", img.Pix, want)
		}
	}
}

func TestScreenshotNeedsDirectory(t *testing.T) {
	g, _ := newTestGame(t, nil)
	g.Screenshot("x")
	if g.PendingScreenshots() != 0 {
		t.Error("capture queued without a directory")
	}
}

func TestPlaytestScreenshotStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScreenshotDir = t.TempDir()
	g := New(cfg, nil)
	if err := g.Start(context.Background(), newEditor(t, nil)); err != nil {
		t.Fatal(err)
	}
	r, err := LoadPlaytest([]byte(`{"steps": [{"action": "screenshot", "text": "start"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	g.SetPlaytest(r)
	g.Step(frame, KeyNone)
	if g.PendingScreenshots() != 1 {
		t.Errorf("pending = %d, want 1", g.PendingScreenshots())
	}
}
