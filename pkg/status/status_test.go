package status

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestRegisterTables(t *testing.T) {
	if Runtime.Len() != 40 {
		t.Errorf("Runtime has %d bits, want 40", Runtime.Len())
	}
	if Bootloader.Len() != 9 {
		t.Errorf("Bootloader has %d bits, want 9", Bootloader.Len())
	}

	// Masks are distinct single bits within the register width.
	for _, r := range []*Register{Runtime, Bootloader} {
		var seen uint64
		for _, b := range r.Bits() {
			if b.Mask == 0 || b.Mask&(b.Mask-1) != 0 {
				t.Errorf("%s.%s mask %#x is not a single bit", r.Name(), b.Name, b.Mask)
			}
			if seen&b.Mask != 0 {
				t.Errorf("%s.%s mask %#x reused", r.Name(), b.Name, b.Mask)
			}
			if r.Width() < 64 && b.Mask>>r.Width() != 0 {
				t.Errorf("%s.%s mask %#x exceeds %d bits", r.Name(), b.Name, b.Mask, r.Width())
			}
			seen |= b.Mask
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		reg  *Register
		name string
		want uint64
	}{
		{Runtime, "SYSTEM_INITIALIZED", 0x1},
		{Runtime, "DISPLACEMENT_COMPLETED", 0x100},
		{Runtime, "COGGING_BETA_CALIBRATED", 0x100000000},
		{Runtime, "SWITCH_OFF_HALL_AFTER_MOVE", 0x8000000000},
		{Bootloader, "CONFIG_CHANGED", 0x100},
		{Bootloader, "NEW_FIRMWARE_RECEIVED", 0x01000000},
		{Bootloader, "LAST_FIRMWARE_OK", 0x08000000},
	}
	for _, tt := range tests {
		t.Run(tt.reg.Name()+"/"+tt.name, func(t *testing.T) {
			got, err := tt.reg.Mask(tt.name)
			if err != nil {
				t.Fatalf("Mask: %v", err)
			}
			if got != tt.want {
				t.Errorf("Mask = %#x, want %#x", got, tt.want)
			}
		})
	}

	if _, err := Runtime.Mask("NOT_A_BIT"); !errors.Is(err, ErrUnknownBit) {
		t.Errorf("expected ErrUnknownBit, got %v", err)
	}
}

func TestIndicesRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, r := range []*Register{Runtime, Bootloader} {
		known := r.Known()
		for i := 0; i < 500; i++ {
			x := rng.Uint64() & known
			if got := r.FromIndices(r.IndicesSet(x)); got != x {
				t.Fatalf("%s: FromIndices(IndicesSet(%#x)) = %#x", r.Name(), x, got)
			}
		}
	}
}

func TestIndicesSet(t *testing.T) {
	v := SystemInitialized | DisplacementCompleted | CalibrationSaved
	got := Runtime.IndicesSet(v)
	want := []int{0, 8, 36}
	if len(got) != len(want) {
		t.Fatalf("IndicesSet = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IndicesSet = %v, want %v", got, want)
			break
		}
	}

	if v := Bootloader.FromIndices([]int{5, 6, 99, -1}); v != NewFirmwareReceived|NewFirmwareCheckOK {
		t.Errorf("FromIndices = %#x", v)
	}
}

func TestDescribeAndFormat(t *testing.T) {
	flags := Bootloader.Describe(BootloaderInit | NewFirmwareCheckBad)
	if len(flags) != 9 {
		t.Fatalf("Describe returned %d flags", len(flags))
	}
	if flags[0].Name != "BOOTLOADER_INIT" || !flags[0].Set {
		t.Errorf("first flag = %+v", flags[0])
	}
	if flags[1].Set {
		t.Errorf("BOOTLOADER_TIMEOUT should be clear")
	}

	out := Bootloader.Format(BootloaderInit)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 9 {
		t.Fatalf("Format has %d lines", len(lines))
	}
	// Columns are aligned on the longest name plus two spaces.
	col := strings.Index(lines[0], ":")
	for _, l := range lines {
		if strings.Index(l, ":") != col {
			t.Errorf("misaligned line %q", l)
		}
	}
	if !strings.HasSuffix(lines[0], ": true") || !strings.HasSuffix(lines[1], ": false") {
		t.Errorf("unexpected Format output:\n%s", out)
	}
}

func TestSetNames(t *testing.T) {
	got := Runtime.SetNames(CollisionAlpha | CollisionBeta)
	if len(got) != 2 || got[0] != "COLLISION_ALPHA" || got[1] != "COLLISION_BETA" {
		t.Errorf("SetNames = %v", got)
	}
}

func TestSplitMasks(t *testing.T) {
	tests := []struct {
		name  string
		set   uint64
		clear uint64
		want  []HalfUpdate
	}{
		{"empty", 0, 0, nil},
		{"low only", LowPowerAfterMove, 0, []HalfUpdate{{Half: Low, Set: 0x80}}},
		{"high only", 0, SwitchOffHallAfterMove, []HalfUpdate{{Half: High, Clear: 0x80}}},
		{
			"both halves", SwitchOffAfterMove | ClosedLoopAlpha, HallBetaDisable,
			[]HalfUpdate{{Half: Low, Set: 0x2000, Clear: 0x20000000}, {Half: High, Set: 0x8}},
		},
		{"clear wins", CollisionAlpha, CollisionAlpha, []HalfUpdate{{Half: Low, Clear: 0x800}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitMasks(tt.set, tt.clear)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitMasks = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("update %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		v    uint64
		want FirmwareVerdict
	}{
		{0, VerdictPending},
		{ReceivingNewFirmware, VerdictPending},
		{NewFirmwareReceived, VerdictUnchecked},
		{NewFirmwareReceived | NewFirmwareCheckOK, VerdictOK},
		{NewFirmwareReceived | NewFirmwareCheckBad, VerdictBad},
		{NewFirmwareReceived | NewFirmwareCheckOK | NewFirmwareCheckBad, VerdictBad},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := Verdict(tt.v); got != tt.want {
				t.Errorf("Verdict(%#x) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}
