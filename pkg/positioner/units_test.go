package positioner

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDegreesToSteps(t *testing.T) {
	tests := []struct {
		deg  float64
		want int64
	}{
		{0, 0},
		{90, 268435456},
		{45, 134217728},
		{-90, -268435456},
		{360, MotorSteps},
		{StepsToDegrees(1) / 2, 0},
		{StepsToDegrees(3) / 2, 2},
	}
	for _, tt := range tests {
		if got := DegreesToSteps(tt.deg); got != tt.want {
			t.Errorf("DegreesToSteps(%v) = %d, want %d", tt.deg, got, tt.want)
		}
	}

	for _, deg := range []float64{0, 12.5, -170, 359.99} {
		if got := StepsToDegrees(DegreesToSteps(deg)); math.Abs(got-deg) > 1e-6 {
			t.Errorf("StepsToDegrees(DegreesToSteps(%v)) = %v", deg, got)
		}
	}
}

func TestTicks(t *testing.T) {
	if got := TicksToDuration(2000); got != time.Second {
		t.Errorf("TicksToDuration(2000) = %v", got)
	}
	if got := DurationToTicks(750 * time.Millisecond); got != 1500 {
		t.Errorf("DurationToTicks(750ms) = %d", got)
	}
}

func TestFormatFirmware(t *testing.T) {
	tests := []struct {
		raw  uint32
		want string
	}{
		{0x010203, "1.2.3"},
		{0, "0.0.0"},
		{0xFF0A0B0C, "10.11.12"},
	}
	for _, tt := range tests {
		if got := FormatFirmware(tt.raw); got != tt.want {
			t.Errorf("FormatFirmware(%#x) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{50, 50},
		{-60, 60},
		{100.4, 100},
		{250, 100},
		{2.5, 2},
		{3.5, 4},
	}
	for _, tt := range tests {
		if got := percent(tt.in); got != tt.want {
			t.Errorf("percent(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAnglePairRange(t *testing.T) {
	tests := []struct {
		alpha, beta float64
		ok          bool
	}{
		{0, 0, true},
		{719.99, -719.99, true},
		{-720, 0, true},
		{720, 0, false},
		{0, -720.01, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		payload, err := anglePair(tt.alpha, tt.beta)
		if tt.ok {
			if err != nil || len(payload) != 8 {
				t.Errorf("anglePair(%v, %v) = %v, %v", tt.alpha, tt.beta, payload, err)
			}
			continue
		}
		if !errors.Is(err, ErrAngleRange) {
			t.Errorf("anglePair(%v, %v) error = %v, want ErrAngleRange", tt.alpha, tt.beta, err)
		}
	}
}
