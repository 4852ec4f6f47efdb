// Package max31855 interfaces with the Maxim MAX31855 cold-junction
// compensated thermocouple-to-digital converter.
//
// The chip is read-only: every transaction clocks out one 32-bit frame
// holding the thermocouple temperature (0.25°C resolution), the
// internal cold-junction temperature (0.0625°C resolution), fault
// flags and two reserved id bits. The chip select line doubles as the
// conversion control, so the driver owns it in both transports.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/MAX31855.pdf
package max31855

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// New opens a MAX31855 on an SPI port, plus a dedicated chip select
// pin. The port is connected with spi.NoCS because the chip select
// line is also the conversion start/stop control and must be driven by
// the driver, not the bus layer. The chip's rated maximum bus speed is
// 5MHz; it shifts data out on the clock's falling edge (mode 0).
func New(p spi.Port, cs gpio.PinIO) (*Dev, error) {
	c, err := p.Connect(5*physic.MegaHertz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		return nil, fmt.Errorf("max31855: %v", err)
	}
	d := &Dev{
		link:      &spiLink{c},
		cs:        cs,
		measDelay: conversionDelay,
		name:      p.String(),
	}
	if err := d.begin(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewBitBang opens a MAX31855 on three GPIO lines, clocking the frame
// out in software. Bit-identical to the SPI transport, just slower.
func NewBitBang(cs, so, sck gpio.PinIO) (*Dev, error) {
	if err := so.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("max31855: %v", err)
	}
	if err := sck.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("max31855: %v", err)
	}
	d := &Dev{
		link:      &bitBangLink{so: so, sck: sck},
		cs:        cs,
		measDelay: conversionDelay,
		name:      fmt.Sprintf("bitbang{%s}", cs.Name()),
	}
	if err := d.begin(); err != nil {
		return nil, err
	}
	return d, nil
}

// Dev represents a MAX31855 device.
//
// The pin and transport configuration is fixed at construction. One
// Dev owns its lines exclusively; distinct devices on distinct pins
// are safe to use from separate goroutines without coordination.
type Dev struct {
	link      frameReader
	cs        gpio.PinIO
	measDelay time.Duration
	name      string

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func (d *Dev) String() string {
	return fmt.Sprintf("max31855{%s}", d.name)
}

// ReadRaw runs one full conversion cycle and returns the raw frame.
// It blocks for the chip's conversion latency (~100ms), which limits
// callers to the chip's natural ~10Hz sampling rate. Callers needing
// several derived values from one physical sample should decode the
// returned frame rather than calling the Dev-level decode methods,
// which each trigger an independent conversion.
//
// A disconnected or misbehaving chip cannot be detected at this layer;
// it shows up as a frame that fails IdentityOk downstream.
func (d *Dev) ReadRaw() (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readFrame()
}

// Fault triggers a conversion and classifies the thermocouple wiring.
func (d *Dev) Fault() (FaultCode, error) {
	f, err := d.ReadRaw()
	if err != nil {
		return FaultUnknown, err
	}
	return f.Fault(), nil
}

// IdentityOk triggers a conversion and checks the reserved id bits.
func (d *Dev) IdentityOk() (bool, error) {
	f, err := d.ReadRaw()
	if err != nil {
		return false, err
	}
	return f.IdentityOk(), nil
}

// Temperature triggers a conversion and decodes the thermocouple
// temperature from it.
func (d *Dev) Temperature() (physic.Temperature, error) {
	f, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	t, err := f.Temperature()
	if err != nil {
		return 0, d.wrap(err)
	}
	return t, nil
}

// ColdJunctionTemperature triggers a conversion and decodes the chip's
// internal reference temperature from it.
func (d *Dev) ColdJunctionTemperature() (physic.Temperature, error) {
	f, err := d.ReadRaw()
	if err != nil {
		return 0, err
	}
	t, err := f.ColdJunctionTemperature()
	if err != nil {
		return 0, d.wrap(err)
	}
	return t, nil
}

// Sense performs one conversion and stores the thermocouple
// temperature in e.
func (d *Dev) Sense(e *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return d.wrap(errors.New("already sensing continuously"))
	}
	return d.sense(e)
}

// SenseContinuous returns thermocouple measurements on a continuous
// basis.
//
// The application must call Halt() to stop the sensing when done to
// stop the sensor and close the channel.
//
// It's the responsibility of the caller to retrieve the values from
// the channel as fast as possible, otherwise the interval may not be
// respected.
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		// Don't touch the device, just wind down the previous loop.
		close(d.stop)
		d.stop = nil
		d.wg.Wait()
	}

	sensing := make(chan physic.Env)
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(sensing)
		d.sensingContinuous(interval, sensing, d.stop)
	}()
	return sensing, nil
}

// Precision reports the thermocouple resolution, 0.25°C per step.
func (d *Dev) Precision(e *physic.Env) {
	e.Temperature = 250 * physic.MilliKelvin
}

// Halt stops the MAX31855 from acquiring measurements as initiated by
// SenseContinuous().
//
// It is recommended to call this function before terminating the
// process to avoid a goroutine leak.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	d.wg.Wait()

	return nil
}

// begin puts the chip select line in its idle high state, which starts
// the chip converting, and waits out the power-up interval.
func (d *Dev) begin() error {
	if err := d.cs.Out(gpio.High); err != nil {
		return d.wrap(err)
	}
	time.Sleep(powerUpDelay)
	return nil
}

// readFrame runs the conversion protocol. The order is fixed by the
// chip: dropping CS aborts whatever conversion is in flight, raising
// it starts a fresh one, and only after the full conversion latency is
// the result valid to clock out. Dropping CS again opens the serial
// interface; raising it at the end starts the next conversion, so the
// chip is always converting except during the brief read window.
func (d *Dev) readFrame() (Frame, error) {
	if err := d.cs.Out(gpio.Low); err != nil {
		return 0, d.wrap(err)
	}
	time.Sleep(csPulseDelay)
	if err := d.cs.Out(gpio.High); err != nil {
		return 0, d.wrap(err)
	}
	time.Sleep(d.measDelay)

	if err := d.cs.Out(gpio.Low); err != nil {
		return 0, d.wrap(err)
	}
	f, err := d.link.readFrame()
	if err2 := d.cs.Out(gpio.High); err == nil {
		err = err2
	}
	if err != nil {
		return 0, d.wrap(err)
	}
	return f, nil
}

func (d *Dev) sense(e *physic.Env) error {
	f, err := d.readFrame()
	if err != nil {
		return err
	}
	t, err := f.Temperature()
	if err != nil {
		return d.wrap(err)
	}
	e.Temperature = t
	return nil
}

func (d *Dev) sensingContinuous(interval time.Duration, sensing chan<- physic.Env, stop <-chan struct{}) {
	// Ensure the interval is at least the chip's conversion latency.
	if interval < d.measDelay {
		interval = d.measDelay
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	var err error
	for {
		// Do one initial sensing right away.
		e := physic.Env{}
		d.mu.Lock()
		err = d.sense(&e)
		d.mu.Unlock()
		if err != nil {
			return
		}
		select {
		case sensing <- e:
		case <-stop:
			return
		}
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

func (d *Dev) wrap(err error) error {
	return fmt.Errorf("%s: %w", strings.ToLower(d.name), err)
}

// frameReader is the one operation a transport must provide: clock 32
// bits off the chip, MSB first, with chip select already asserted.
type frameReader interface {
	readFrame() (Frame, error)
}

type spiLink struct {
	c conn.Conn
}

func (l *spiLink) readFrame() (Frame, error) {
	// The chip has no MOSI pin, the write half is ignored.
	var w, r [4]byte
	if err := l.c.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return Frame(binary.BigEndian.Uint32(r[:])), nil
}

type bitBangLink struct {
	so  gpio.PinIO
	sck gpio.PinIO
}

func (l *bitBangLink) readFrame() (Frame, error) {
	var f Frame
	for i := 0; i < 32; i++ {
		if err := l.sck.Out(gpio.High); err != nil {
			return 0, err
		}
		f <<= 1
		if l.so.Read() == gpio.High {
			f |= 1
		}
		if err := l.sck.Out(gpio.Low); err != nil {
			return 0, err
		}
	}
	return f, nil
}

var _ conn.Resource = &Dev{}
var _ physic.SenseEnv = &Dev{}
