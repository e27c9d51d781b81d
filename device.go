package nflash

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// BlockDevice is the Flash Block Device: the block-interface contract of
// spec §4.4, composing the wire, geometry and cache layers into the single
// object a board-startup routine owns and passes by exclusive reference to
// block operations (spec §9, "the singleton device").
type BlockDevice struct {
	w *wire
	g Geometry
	c *cache
}

// New constructs a BlockDevice over the given SPI connection and chip
// select pin. It does not talk to the chip; call Identify before using
// any block operation.
func New(conn spi.Conn, cs gpio.PinIO) *BlockDevice {
	w := newWire(conn, cs)
	return &BlockDevice{
		w: w,
		c: newCache(w, Geometry{}),
	}
}

// Identify reads the chip's JEDEC ID and looks it up in the known-chip
// table, deriving Geometry. An unrecognized chip leaves Geometry zero:
// BlockCount reports PartitionStartBlock and every read or write of a block
// at or past PartitionStartBlock fails, per spec §4.2. Block 0 still reads
// as the synthetic MBR.
func (d *BlockDevice) Identify() error {
	id, err := d.w.identify()
	if err != nil {
		return err
	}
	g, _ := lookupGeometry(id) // ok==false leaves g at its zero value
	d.g = g
	d.c.g = g
	return nil
}

// Geometry returns the device's current geometry. Its FlashSize is zero
// until a successful Identify of a known chip.
func (d *BlockDevice) Geometry() Geometry {
	return d.g
}

// PowerUp releases the chip from power-down standby. Callers should bracket
// a session with PowerUp and a deferred PowerDown, exactly as cmd/gice
// brackets each of its flash operations.
func (d *BlockDevice) PowerUp() error {
	return d.w.powerUp()
}

// PowerDown puts the chip into its lowest-power standby state between
// sessions.
func (d *BlockDevice) PowerDown() error {
	return d.w.powerDown()
}

// SetActivityLED wires an optional activity indicator toggled for the
// duration of each flush (spec §6, §9).
func (d *BlockDevice) SetActivityLED(pin gpio.PinOut) {
	d.c.ActivityLED = pin
}

// BlockSize is always 512, the fixed unit exposed to filesystem and USB
// layers.
func (d *BlockDevice) BlockSize() int { return BlockSize }

// BlockCount is the total number of blocks, including the synthetic MBR.
func (d *BlockDevice) BlockCount() int { return d.g.BlockCount() }

// addrOf translates a block index to a flash byte address. ok is false for
// an index outside [PartitionStartBlock, BlockCount()).
func (d *BlockDevice) addrOf(idx int) (addr int, ok bool) {
	if idx < PartitionStartBlock || idx >= d.g.BlockCount() {
		return 0, false
	}
	return (idx - PartitionStartBlock) * BlockSize, true
}

// ReadBlock fills dest (which must be BlockSize bytes) with the current
// contents of block idx. Block 0 is always the synthesized MBR; blocks
// below PartitionStartBlock other than 0 are reserved and read as zero;
// everything else is served by the cache layer, which may return dirty
// cache contents instead of flash. See spec §4.4.
func (d *BlockDevice) ReadBlock(idx int, dest []byte) error {
	if len(dest) != BlockSize {
		return fmt.Errorf("nflash: dest must be %d bytes, got %d", BlockSize, len(dest))
	}
	if idx == 0 {
		mbr := synthesizeMBR(d.g.BlockCount())
		copy(dest, mbr[:])
		return nil
	}
	if idx < PartitionStartBlock {
		clear(dest)
		return nil
	}
	addr, ok := d.addrOf(idx)
	if !ok {
		return ErrOutOfRange
	}
	if !d.g.present() {
		return ErrNotPresent
	}
	return d.c.read(addr, dest)
}

// WriteBlock stages src (which must be BlockSize bytes) as the new
// authoritative contents of block idx. Writes below PartitionStartBlock
// silently succeed: the host's attempts to write the synthetic MBR are
// ignored. The write is not durable until a following Flush completes
// (spec §5).
func (d *BlockDevice) WriteBlock(idx int, src []byte) error {
	if len(src) != BlockSize {
		return fmt.Errorf("nflash: src must be %d bytes, got %d", BlockSize, len(src))
	}
	if idx < PartitionStartBlock {
		return nil
	}
	addr, ok := d.addrOf(idx)
	if !ok {
		return ErrOutOfRange
	}
	if !d.g.present() {
		return ErrNotPresent
	}
	if err := d.w.waitReady(); err != nil {
		return err
	}
	return d.c.stageWrite(addr, src)
}

// ReadBlocks reads count consecutive blocks starting at idx into dest
// (count*BlockSize bytes). The first failure aborts the whole operation.
func (d *BlockDevice) ReadBlocks(idx, count int, dest []byte) error {
	for i := 0; i < count; i++ {
		if err := d.ReadBlock(idx+i, dest[i*BlockSize:(i+1)*BlockSize]); err != nil {
			return fmt.Errorf("read block %d: %w", idx+i, err)
		}
	}
	return nil
}

// WriteBlocks writes count consecutive blocks starting at idx from src
// (count*BlockSize bytes). The first failure aborts the whole operation.
func (d *BlockDevice) WriteBlocks(idx, count int, src []byte) error {
	for i := 0; i < count; i++ {
		if err := d.WriteBlock(idx+i, src[i*BlockSize:(i+1)*BlockSize]); err != nil {
			return fmt.Errorf("write block %d: %w", idx+i, err)
		}
	}
	return nil
}

// Flush commits any cached writes back to flash and releases the RAM
// cache. Delegates to the cache layer's flush with keepCache=false.
func (d *BlockDevice) Flush() error {
	return d.c.flush(false)
}
