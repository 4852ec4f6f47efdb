package max31855

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

var (
	// ErrIdentity means the reserved id bits were set: whatever answered
	// on the bus was not a MAX31855 (or nothing answered at all, in
	// which case the frame reads back all ones).
	ErrIdentity = errors.New("device id check failed")
	// ErrFault means the thermocouple is miswired; inspect Fault() for
	// the specific cause.
	ErrFault = errors.New("thermocouple fault")
)

// Frame is one 32-bit readout clocked off the chip. Decoding is pure:
// the same frame always yields the same results, so several values can
// be derived from a single physical sample by reusing the frame.
type Frame uint32

func (f Frame) bit(n uint) bool {
	return f>>n&1 == 1
}

// Fault classifies the thermocouple wiring state. The global fault
// flag (D16) is authoritative: if it is clear the result is FaultOk no
// matter what the specific fault bits read. If it is set, the specific
// bits are checked in fixed priority order.
func (f Frame) Fault() FaultCode {
	if !f.bit(faultBit) {
		return FaultOk
	}
	switch {
	case f.bit(shortVCCBit):
		return FaultShortToVCC
	case f.bit(shortGNDBit):
		return FaultShortToGND
	case f.bit(openBit):
		return FaultOpenCircuit
	}
	return FaultUnknown
}

// IdentityOk reports whether both reserved id bits (D17, D3) read
// zero, as they always do on a genuine chip. A disconnected or floating
// bus fails this check.
func (f Frame) IdentityOk() bool {
	return !f.bit(idBitHigh) && !f.bit(idBitLow)
}

// Temperature decodes the thermocouple reading, 0.25°C per step.
// It refuses to produce a value if the frame reports a thermocouple
// fault or fails the identity check.
func (f Frame) Temperature() (physic.Temperature, error) {
	if !f.IdentityOk() {
		return 0, ErrIdentity
	}
	if fc := f.Fault(); fc != FaultOk {
		return 0, fmt.Errorf("%w: %v", ErrFault, fc)
	}
	// Arithmetic shift sign-extends the 14-bit field in D31..D18.
	steps := int32(f) >> 18
	return physic.ZeroCelsius + physic.Temperature(steps)*250*physic.MilliKelvin, nil
}

// ColdJunctionTemperature decodes the chip's internal reference
// temperature, 0.0625°C per step. It is valid even when the
// thermocouple itself is faulted, but still requires the identity
// check to pass.
func (f Frame) ColdJunctionTemperature() (physic.Temperature, error) {
	if !f.IdentityOk() {
		return 0, ErrIdentity
	}
	// 12-bit field in D15..D4, sign-extended.
	steps := int32(f<<16) >> 20
	return physic.ZeroCelsius + physic.Temperature(steps)*62500*physic.MicroKelvin, nil
}
