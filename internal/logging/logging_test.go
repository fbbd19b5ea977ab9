package logging

import "testing"

func TestNewAcceptsKnownFormats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		log, err := New(format, "info")
		if err != nil {
			t.Fatalf("New(%q, info) error: %v", format, err)
		}
		if log == nil {
			t.Fatalf("New(%q, info) returned a nil logger", format)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("yaml", "info"); err == nil {
		t.Error("expected an error for an unrecognised LOG_FORMAT")
	}
}

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	log, err := New("text", "not-a-level")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if log == nil {
		t.Fatal("expected a non-nil logger even with an unrecognised level")
	}
}
