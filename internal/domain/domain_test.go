package domain

import (
	"errors"
	"testing"
	"time"
)

// ─── Mode Tests ─────────────────────────────────────────────────────────────

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"WEB3", ModeWeb3},
		{" router ", ModeRouter},
		{"Demo", ModeDemo},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseMode_Unknown(t *testing.T) {
	_, err := ParseMode("telepathy")
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode() error = %v, want ErrUnknownMode", err)
	}
}

func TestRequestModes_Unique(t *testing.T) {
	seen := make(map[Mode]bool)
	for _, m := range RequestModes {
		if seen[m] {
			t.Errorf("duplicate Mode: %s", m)
		}
		seen[m] = true
	}
	if len(seen) != 4 {
		t.Errorf("got %d modes, want 4", len(seen))
	}
}

// ─── Task Tests ─────────────────────────────────────────────────────────────

func TestTask_IsTerminal(t *testing.T) {
	task := Task{ID: 1, CreatedAt: time.Now()}
	if task.IsTerminal() {
		t.Error("task without end time should not be terminal")
	}
	task.EndedAt = time.Now()
	if !task.IsTerminal() {
		t.Error("task with end time should be terminal")
	}
}
