package nflash

// Geometry describes the addressable shape of the flash chip, derived once
// from its JEDEC ID at Identify time. The zero value (FlashSize == 0) marks
// "unknown chip, device disabled": BlockCount reports
// PartitionStartBlock and every read or write of a block at or past
// PartitionStartBlock fails; block 0 still reads as the synthetic MBR.
type Geometry struct {
	Name string

	FlashSize  int // total chip size, bytes
	SectorSize int // erase unit, bytes
	PageSize   int // max program unit, bytes
}

// BlockSize is the fixed block size exposed to the block interface layer.
// It never varies with chip geometry.
const BlockSize = 512

// PartitionStartBlock is the first block of partition 1; block 0 is the
// synthetic MBR.
const PartitionStartBlock = 1

// knownGeometry maps a 3-byte JEDEC ID to the geometry of a supported chip.
// This table is the only place an implementer needs to extend to support
// additional chips — see spec §4.2.
var knownGeometry = map[[3]byte]Geometry{
	// Matches the chip documented in the original firmware: manufacturer
	// 0x01, device 0x40 0x15.
	{0x01, 0x40, 0x15}: {
		Name:       "SST/generic 0x014015",
		FlashSize:  1 << 21, // 2 MiB
		SectorSize: 1 << 12, // 4 KiB
		PageSize:   256,
	},
}

// lookupGeometry returns the geometry for a known JEDEC ID. ok is false for
// an unrecognized chip, in which case the caller must treat the device as
// disabled (FlashSize == 0).
func lookupGeometry(id [3]byte) (g Geometry, ok bool) {
	g, ok = knownGeometry[id]
	return g, ok
}

// blocksPerSector is the number of 512-byte blocks in one erase sector.
func (g Geometry) blocksPerSector() int {
	return g.SectorSize / BlockSize
}

// pagesPerBlock is the number of programmable pages in one 512-byte block.
func (g Geometry) pagesPerBlock() int {
	return BlockSize / g.PageSize
}

// scratchSectorAddr is the address of the top erase sector, reserved as a
// write-staging area and never exposed as a data block.
func (g Geometry) scratchSectorAddr() int {
	return g.FlashSize - g.SectorSize
}

// BlockCount is the total number of blocks exposed through the block
// interface, including the synthetic MBR at block 0.
func (g Geometry) BlockCount() int {
	if g.FlashSize == 0 {
		return PartitionStartBlock
	}
	return PartitionStartBlock + (g.FlashSize-g.SectorSize)/BlockSize
}

// present reports whether Identify found a known chip.
func (g Geometry) present() bool {
	return g.FlashSize != 0
}

// sectorOf returns the erase-sector-aligned address containing addr.
func (g Geometry) sectorOf(addr int) int {
	return addr &^ (g.SectorSize - 1)
}

// blockIndexInSector returns addr's block position within its erase sector,
// in [0, blocksPerSector).
func (g Geometry) blockIndexInSector(addr int) int {
	return (addr / BlockSize) % g.blocksPerSector()
}
