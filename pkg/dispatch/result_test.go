package dispatch

import (
	"testing"
	"time"
)

func TestCodeStrings(t *testing.T) {
	tests := []struct {
		code Code
		name string
	}{
		{CodeSendFailed, "SEND_FAILED"},
		{CodeNoResponse, "NO_RESPONSE"},
		{CodeAccepted, "COMMAND_ACCEPTED"},
		{CodeValueOutOfRange, "VALUE_OUT_OF_RANGE"},
		{CodeAlreadyInMotion, "ALREADY_IN_MOTION"},
		{CodeInvalidBootloaderCmd, "INVALID_BOOTLOADER_COMMAND"},
		{CodeHallSensorDisabled, "HALL_SENSOR_DISABLED"},
		{Code(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if tt.code.Reason() == "" {
				t.Error("Reason() is empty")
			}
		})
	}
}

func TestEveryDeviceCodeHasAName(t *testing.T) {
	for c := Code(0); c <= 15; c++ {
		if c.String() == "UNKNOWN" {
			t.Errorf("code %d has no name", c)
		}
	}
}

func TestTimeoutsFor(t *testing.T) {
	def := DefaultTimeouts()
	custom := Timeouts{Quick: 50 * time.Millisecond}

	tests := []struct {
		name  string
		t     Timeouts
		class TimeoutClass
		want  time.Duration
	}{
		{"default class", def, ClassDefault, 500 * time.Millisecond},
		{"quick", def, ClassQuick, 200 * time.Millisecond},
		{"set position", def, ClassSetPosition, 1200 * time.Millisecond},
		{"firmware chunk", def, ClassFirmwareChunk, 45 * time.Second},
		{"override", custom, ClassQuick, 50 * time.Millisecond},
		{"zero falls back", custom, ClassSave, time.Second},
		{"unknown class", def, TimeoutClass(99), 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.t.For(tt.class); got != tt.want {
				t.Errorf("For(%v) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestReplyCollision(t *testing.T) {
	r := Reply{Command: CollisionCommand, Code: CodeCollisionDetectedAlpha}
	if !r.IsCollision() {
		t.Error("command 18 should be a collision notice")
	}
	if r.Accepted() {
		t.Error("collision reply should not be accepted")
	}
}
