package max31855

import "time"

// FaultCode classifies the thermocouple wiring state reported in a frame.
type FaultCode int

const (
	FaultOk FaultCode = iota
	FaultShortToVCC
	FaultShortToGND
	FaultOpenCircuit
	// FaultUnknown means the fault flag was set but none of the three
	// specific fault bits were, which the datasheet says cannot happen.
	FaultUnknown
)

func (f FaultCode) String() string {
	switch f {
	case FaultOk:
		return "ok"
	case FaultShortToVCC:
		return "short to vcc"
	case FaultShortToGND:
		return "short to gnd"
	case FaultOpenCircuit:
		return "open circuit"
	default:
		return "unknown fault"
	}
}

const (
	// The chip needs 200ms after power-up before the first conversion
	// is usable, and ~100ms per conversion (9..10Hz sampling rate).
	powerUpDelay    = 200 * time.Millisecond
	conversionDelay = 100 * time.Millisecond
	// Holding CS low this long aborts a conversion in progress.
	csPulseDelay = time.Millisecond
)

// Frame bit positions, D31..D0. D31..D18 is the signed thermocouple
// reading, D15..D4 the signed cold-junction reading.
const (
	faultBit    = 16 // set on any thermocouple fault
	idBitHigh   = 17 // always reads 0 on a genuine chip
	idBitLow    = 3  // always reads 0 on a genuine chip
	shortVCCBit = 2
	shortGNDBit = 1
	openBit     = 0
)
