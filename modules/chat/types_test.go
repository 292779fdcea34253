package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     error
	}{
		{name: "valid", username: "alice", want: nil},
		{name: "empty", username: "", want: ErrUsernameEmpty},
		{name: "too long", username: strings.Repeat("a", MaxUsernameLength+1), want: ErrUsernameTooLong},
		{name: "invalid utf8", username: "bad\xff", want: ErrUsernameInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateUsername(tt.username); !errors.Is(err, tt.want) {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.username, err, tt.want)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "valid", content: "hi", want: nil},
		{name: "max length", content: strings.Repeat("a", MaxMessageLength), want: nil},
		{name: "empty", content: "", want: ErrMessageEmpty},
		{name: "too long", content: strings.Repeat("a", MaxMessageLength+1), want: ErrMessageTooLong},
		{name: "invalid utf8", content: "\xff\xfe", want: ErrMessageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMessage(tt.content); !errors.Is(err, tt.want) {
				t.Errorf("ValidateMessage() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{MaxHistory: 5}.withDefaults()

	if got.MaxHistory != 5 {
		t.Errorf("MaxHistory = %d, want 5", got.MaxHistory)
	}
	if got.IdleRoomGrace != 10*time.Second {
		t.Errorf("IdleRoomGrace = %v, want 10s", got.IdleRoomGrace)
	}
	if got.MoodInterval != 20*time.Second {
		t.Errorf("MoodInterval = %v, want 20s", got.MoodInterval)
	}
	if got.MoodSampleSize != 10 {
		t.Errorf("MoodSampleSize = %d, want 10", got.MoodSampleSize)
	}
}
