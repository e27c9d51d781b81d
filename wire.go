package nflash

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Flash commands. Same command set the teacher's chip table documents,
// trimmed to what this chip family actually needs — see spec §4.1 and
// original_source/atmel-samd/spi_flash.c.
const (
	cmdReadJEDECID      = 0x9F
	cmdReadData         = 0x03
	cmdWriteEnable      = 0x06
	cmdPageProgram      = 0x02
	cmdSectorErase      = 0x20
	cmdReadStatus       = 0x05
	cmdReleasePowerDown = 0xAB
	cmdPowerDown        = 0xB9
)

// spiTx is the minimal surface of periph.io/x/conn/v3/spi.Conn the wire
// layer exercises. Programming against it instead of the concrete type
// keeps wire.go testable with a plain fake, while New still accepts the
// real spi.Conn interface.
type spiTx interface {
	Tx(w, r []byte) error
}

// csPin is the minimal surface of periph.io/x/conn/v3/gpio.PinIO this
// layer drives.
type csPin interface {
	Out(l gpio.Level) error
}

// wire is the SPI command-framing layer: it knows nothing about geometry
// or caching, only how to frame the chip's eight commands over SPI and poll
// its status register. See spec §4.1.
type wire struct {
	conn spiTx
	cs   csPin
}

func newWire(conn spi.Conn, cs gpio.PinIO) *wire {
	return &wire{conn: conn, cs: cs}
}

// tx wraps an SPI transaction with CS assertion, restoring CS high on every
// exit path including error.
func (w *wire) tx(buf []byte) (err error) {
	if err = w.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: assert cs: %v", ErrWireFault, err)
	}
	defer func() {
		if csErr := w.cs.Out(gpio.High); csErr != nil && err == nil {
			err = fmt.Errorf("%w: deassert cs: %v", ErrWireFault, csErr)
		}
	}()
	if txErr := w.conn.Tx(buf, buf); txErr != nil {
		err = fmt.Errorf("%w: %v", ErrWireFault, txErr)
	}
	return err
}

// identify asserts CS, transmits a 4-byte JEDEC request, and reads the
// 3-byte response.
func (w *wire) identify() (id [3]byte, err error) {
	buf := []byte{cmdReadJEDECID, 0, 0, 0}
	if err = w.tx(buf); err != nil {
		return id, err
	}
	return [3]byte(buf[1:]), nil
}

func (w *wire) powerUp() error {
	buf := []byte{cmdReleasePowerDown}
	if err := w.tx(buf); err != nil {
		return err
	}
	time.Sleep(powerTransitionDelay)
	return nil
}

func (w *wire) powerDown() error {
	buf := []byte{cmdPowerDown}
	if err := w.tx(buf); err != nil {
		return err
	}
	time.Sleep(powerTransitionDelay)
	return nil
}

// writeEnable sets the write-enable latch. Required before every program
// and erase.
func (w *wire) writeEnable() error {
	return w.tx([]byte{cmdWriteEnable})
}

// statusRegister represents the flash chip's status register: bit 0 is
// write-in-progress (WIP/BUSY), bit 1 is the write-enable latch (WEL).
type statusRegister byte

func (sr statusRegister) busy() bool         { return sr&(1<<0) != 0 }
func (sr statusRegister) writeEnabled() bool { return sr&(1<<1) != 0 }
func (sr statusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	var s []string
	if sr.writeEnabled() {
		s = append(s, "WEL")
	}
	if sr.busy() {
		s = append(s, "BUSY")
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

func (w *wire) readStatus() (statusRegister, error) {
	buf := []byte{cmdReadStatus, 0}
	if err := w.tx(buf); err != nil {
		return 0, err
	}
	return statusRegister(buf[1]), nil
}

// waitReady polls the status register until both WIP and WEL clear. It
// fails only on a bus error; it never times out and takes no deadline or
// context, matching spec §5's "suspension points" model.
func (w *wire) waitReady() error {
	for {
		sr, err := w.readStatus()
		if err != nil {
			return err
		}
		if !sr.busy() && !sr.writeEnabled() {
			return nil
		}
	}
}

// read issues READ_DATA with a 24-bit address and streams len(data) bytes.
// The chip auto-increments its internal address; there is no length cap
// here.
func (w *wire) read(addr int, data []byte) error {
	buf := make([]byte, 4+len(data))
	buf[0] = cmdReadData
	putAddr24(buf[1:4], addr)
	if err := w.tx(buf); err != nil {
		return err
	}
	copy(data, buf[4:])
	return nil
}

// programPage requires waitReady+writeEnable, then programs at most
// pageSize bytes. Callers must align addr to the page size and must not
// cross a page boundary — this layer does not enforce either, matching
// spec §4.1 ("callers must...").
func (w *wire) programPage(addr int, data []byte) error {
	if err := w.waitReady(); err != nil {
		return err
	}
	if err := w.writeEnable(); err != nil {
		return err
	}
	buf := make([]byte, 4+len(data))
	buf[0] = cmdPageProgram
	putAddr24(buf[1:4], addr)
	copy(buf[4:], data)
	return w.tx(buf)
}

// eraseSector requires waitReady+writeEnable, then erases the 4 KiB sector
// at addr. addr must be sector-aligned.
func (w *wire) eraseSector(addr int) error {
	if err := w.waitReady(); err != nil {
		return err
	}
	if err := w.writeEnable(); err != nil {
		return err
	}
	buf := make([]byte, 4)
	buf[0] = cmdSectorErase
	putAddr24(buf[1:4], addr)
	return w.tx(buf)
}

func putAddr24(b []byte, addr int) {
	b[0] = byte(addr >> 16)
	b[1] = byte(addr >> 8)
	b[2] = byte(addr)
}

// tRES1-class delays (CS-high-to-standby after power commands) observed in
// the teacher's flash_params.go table for comparable chips. Tiny enough
// that a fixed constant beats threading another chip-parameter table
// through this layer for a single command pair nothing else depends on.
const powerTransitionDelay = 3 * time.Microsecond
