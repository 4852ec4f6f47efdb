package max31855

import (
	"errors"
	"testing"
)

// makeFrame builds a fault-free frame from signed thermocouple and
// cold-junction step counts.
func makeFrame(tc, cj int32) Frame {
	return Frame(uint32(tc)<<18 | (uint32(cj)&0xFFF)<<4)
}

func TestFault(t *testing.T) {
	tests := []struct {
		frame Frame
		want  FaultCode
	}{
		{0, FaultOk},
		{1<<faultBit | 1<<shortVCCBit, FaultShortToVCC},
		{1<<faultBit | 1<<shortGNDBit, FaultShortToGND},
		{1<<faultBit | 1<<openBit, FaultOpenCircuit},
		{1 << faultBit, FaultUnknown},
		// D2 wins over D1 over D0.
		{1<<faultBit | 1<<shortVCCBit | 1<<shortGNDBit | 1<<openBit, FaultShortToVCC},
		{1<<faultBit | 1<<shortGNDBit | 1<<openBit, FaultShortToGND},
		// The flag bit is authoritative: specific bits alone mean nothing.
		{1<<shortVCCBit | 1<<shortGNDBit | 1<<openBit, FaultOk},
		// Disconnected bus reads all ones; the priority order still
		// resolves it.
		{0xFFFFFFFF, FaultShortToVCC},
	}
	for _, tt := range tests {
		if got := tt.frame.Fault(); got != tt.want {
			t.Errorf("Fault(%#08x) = %v, want %v", uint32(tt.frame), got, tt.want)
		}
	}
}

func TestIdentityOk(t *testing.T) {
	tests := []struct {
		frame Frame
		want  bool
	}{
		{0, true},
		{makeFrame(84, 44), true},
		{1 << idBitHigh, false},
		{1 << idBitLow, false},
		{1<<idBitHigh | 1<<idBitLow, false},
		{0xFFFFFFFF, false},
	}
	for _, tt := range tests {
		if got := tt.frame.IdentityOk(); got != tt.want {
			t.Errorf("IdentityOk(%#08x) = %v, want %v", uint32(tt.frame), got, tt.want)
		}
	}
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		tc   int32
		want float64
	}{
		{0, 0},
		{1, 0.25},
		{-1, -0.25},
		{84, 21},
		{-800, -200},
		{2801, 700.25},
		{-8192, -2048},
		{8191, 2047.75},
	}
	for _, tt := range tests {
		got, err := makeFrame(tt.tc, 0).Temperature()
		if err != nil {
			t.Errorf("Temperature(tc=%d): %v", tt.tc, err)
			continue
		}
		if got.Celsius() != tt.want {
			t.Errorf("Temperature(tc=%d) = %g°C, want %g°C", tt.tc, got.Celsius(), tt.want)
		}
	}
}

func TestColdJunctionTemperature(t *testing.T) {
	tests := []struct {
		cj   int32
		want float64
	}{
		{0, 0},
		{1, 0.0625},
		{-1, -0.0625},
		{44, 2.75},
		{-4, -0.25},
		{-640, -40},
		{2000, 125},
		{-2048, -128},
		{2047, 127.9375},
	}
	for _, tt := range tests {
		got, err := makeFrame(0, tt.cj).ColdJunctionTemperature()
		if err != nil {
			t.Errorf("ColdJunctionTemperature(cj=%d): %v", tt.cj, err)
			continue
		}
		if got.Celsius() != tt.want {
			t.Errorf("ColdJunctionTemperature(cj=%d) = %g°C, want %g°C", tt.cj, got.Celsius(), tt.want)
		}
	}
}

// Thermocouple +84 steps, cold junction +44 steps, no faults: the
// datasheet worked example.
func TestDecodeWorkedExample(t *testing.T) {
	f := makeFrame(84, 44)
	if f != 0x015002C0 {
		t.Fatalf("frame = %#08x, want 0x015002c0", uint32(f))
	}
	if fc := f.Fault(); fc != FaultOk {
		t.Errorf("Fault() = %v, want %v", fc, FaultOk)
	}
	if !f.IdentityOk() {
		t.Error("IdentityOk() = false, want true")
	}
	tc, err := f.Temperature()
	if err != nil {
		t.Fatalf("Temperature(): %v", err)
	}
	if tc.Celsius() != 21 {
		t.Errorf("Temperature() = %g°C, want 21°C", tc.Celsius())
	}
	cj, err := f.ColdJunctionTemperature()
	if err != nil {
		t.Fatalf("ColdJunctionTemperature(): %v", err)
	}
	if cj.Celsius() != 2.75 {
		t.Errorf("ColdJunctionTemperature() = %g°C, want 2.75°C", cj.Celsius())
	}
}

func TestDecodeErrors(t *testing.T) {
	// Any thermocouple fault blocks the thermocouple decode but not
	// the cold-junction decode.
	f := Frame(1<<faultBit | 1<<openBit | (44 << 4))
	if _, err := f.Temperature(); !errors.Is(err, ErrFault) {
		t.Errorf("Temperature() error = %v, want ErrFault", err)
	}
	cj, err := f.ColdJunctionTemperature()
	if err != nil {
		t.Fatalf("ColdJunctionTemperature(): %v", err)
	}
	if cj.Celsius() != 2.75 {
		t.Errorf("ColdJunctionTemperature() = %g°C, want 2.75°C", cj.Celsius())
	}

	// A bad id bit blocks both decodes, with or without fault bits.
	for _, f := range []Frame{1 << idBitHigh, 1 << idBitLow, 0xFFFFFFFF} {
		if _, err := f.Temperature(); !errors.Is(err, ErrIdentity) {
			t.Errorf("Temperature(%#08x) error = %v, want ErrIdentity", uint32(f), err)
		}
		if _, err := f.ColdJunctionTemperature(); !errors.Is(err, ErrIdentity) {
			t.Errorf("ColdJunctionTemperature(%#08x) error = %v, want ErrIdentity", uint32(f), err)
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	f := makeFrame(-123, -45)
	t1, err1 := f.Temperature()
	t2, err2 := f.Temperature()
	if t1 != t2 || err1 != err2 {
		t.Errorf("Temperature() not stable: %v/%v vs %v/%v", t1, err1, t2, err2)
	}
	c1, _ := f.ColdJunctionTemperature()
	c2, _ := f.ColdJunctionTemperature()
	if c1 != c2 {
		t.Errorf("ColdJunctionTemperature() not stable: %v vs %v", c1, c2)
	}
	if fc1, fc2 := f.Fault(), f.Fault(); fc1 != fc2 {
		t.Errorf("Fault() not stable: %v vs %v", fc1, fc2)
	}
}
