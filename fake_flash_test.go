package nflash

import "periph.io/x/conn/v3/gpio"

// fakeFlash is an in-memory SPI NOR flash model used across this package's
// tests. It implements spiTx and csPin directly, so it can stand in for
// both the SPI connection and the chip-select pin.
type fakeFlash struct {
	id  [3]byte
	mem []byte

	wel        bool
	busyPolls  int // number of readStatus calls that report BUSY before clearing
	txCount    int
	csAsserted bool
}

func newFakeFlash(g Geometry) *fakeFlash {
	mem := make([]byte, g.FlashSize)
	for i := range mem {
		mem[i] = 0xff // erased NOR flash reads as all-ones
	}
	return &fakeFlash{id: [3]byte{0x01, 0x40, 0x15}, mem: mem}
}

func (f *fakeFlash) Out(l gpio.Level) error {
	f.csAsserted = l == gpio.Low
	return nil
}

func (f *fakeFlash) Tx(w, r []byte) error {
	f.txCount++
	switch w[0] {
	case cmdReadJEDECID:
		copy(r[1:4], f.id[:])
	case cmdReadStatus:
		var sr statusRegister
		if f.busyPolls > 0 {
			f.busyPolls--
			sr |= 1 << 0
		}
		if f.wel {
			sr |= 1 << 1
		}
		r[1] = byte(sr)
	case cmdWriteEnable:
		f.wel = true
	case cmdReadData:
		addr := addr24(w[1:4])
		copy(r[4:], f.mem[addr:addr+len(r)-4])
	case cmdPageProgram:
		addr := addr24(w[1:4])
		copy(f.mem[addr:], w[4:])
		f.wel = false
	case cmdSectorErase:
		addr := addr24(w[1:4])
		// Sector size isn't known to the fake; callers only ever erase
		// addresses aligned to a real sector, so erase to the end of mem
		// or 4 KiB, whichever is smaller, which covers every geometry
		// used in these tests.
		end := addr + 4096
		if end > len(f.mem) {
			end = len(f.mem)
		}
		for i := addr; i < end; i++ {
			f.mem[i] = 0xff
		}
		f.wel = false
	case cmdReleasePowerDown, cmdPowerDown:
		// no state change modeled
	}
	return nil
}

func addr24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}
