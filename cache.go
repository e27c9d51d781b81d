package nflash

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// noSectorLoaded is the sentinel for "no sector currently cached".
const noSectorLoaded = -1

// backing tags which of the two write-staging strategies, if either, the
// cache currently uses. A tagged variant instead of a null-pointer
// sentinel makes "is there a RAM cache?" an explicit, exhaustive switch
// rather than a nil check scattered through the read/write paths.
type backing int

const (
	backingNone backing = iota
	backingRAM
	backingScratch
)

// ramCache holds one sector's worth of tentative page buffers. Each page
// is allocated individually so a fragmented heap never has to satisfy one
// large contiguous request — see allocateRAMCache.
type ramCache struct {
	pages [][]byte // dense array of blocksPerSector * pagesPerBlock buffers
}

// cache is the sector-cache / write-staging state machine of spec §4.3. At
// most one sector is cached at a time; dirtyMask records which of its
// sub-blocks hold authoritative data in the cache rather than in flash.
type cache struct {
	w *wire
	g Geometry

	currentSector int // sectorOf address, or noSectorLoaded
	dirtyMask     uint32
	back          backing
	ram           *ramCache

	// ActivityLED, if non-nil, is driven high for the duration of flush and
	// low again afterward — the optional hook named in spec §6, grounded
	// on spi_flash.c's MICROPY_HW_LED_MSC toggle around
	// spi_flash_flush_keep_cache.
	ActivityLED gpio.PinOut
}

func newCache(w *wire, g Geometry) *cache {
	return &cache{
		w:             w,
		g:             g,
		currentSector: noSectorLoaded,
	}
}

// empty reports whether there are no pending modifications. Invariant 1 of
// spec §8: currentSector != NONE implies dirtyMask != 0, so testing either
// is equivalent; emptiness is exposed as its own predicate for clarity at
// call sites.
func (c *cache) empty() bool {
	return c.currentSector == noSectorLoaded
}

// read returns the authoritative 512 bytes for the block at flash address
// addr. If addr falls in the currently cached sector and its dirty bit is
// set, the read is served from the cache; otherwise it goes straight to
// flash.
func (c *cache) read(addr int, dest []byte) error {
	sector := c.g.sectorOf(addr)
	blockIdx := c.g.blockIndexInSector(addr)
	mask := uint32(1) << blockIdx

	if !c.empty() && c.currentSector == sector && c.dirtyMask&mask != 0 {
		switch c.back {
		case backingRAM:
			return c.readFromRAM(blockIdx, dest)
		case backingScratch:
			scratchAddr := c.g.scratchSectorAddr() + blockIdx*BlockSize
			return c.w.read(scratchAddr, dest)
		}
	}
	return c.w.read(addr, dest)
}

func (c *cache) readFromRAM(blockIdx int, dest []byte) error {
	pagesPerBlock := c.g.pagesPerBlock()
	for i := 0; i < pagesPerBlock; i++ {
		page := c.ram.pages[blockIdx*pagesPerBlock+i]
		copy(dest[i*c.g.PageSize:(i+1)*c.g.PageSize], page)
	}
	return nil
}

// stageWrite places 512 bytes into the cache as the new authoritative
// contents of the block at flash address addr. It implements the sector
// transition table of spec §4.3.
func (c *cache) stageWrite(addr int, src []byte) error {
	sector := c.g.sectorOf(addr)
	blockIdx := c.g.blockIndexInSector(addr)
	mask := uint32(1) << blockIdx

	needsNewSector := c.empty() || c.currentSector != sector || c.dirtyMask&mask != 0
	if needsNewSector {
		if !c.empty() {
			// Either moving to a different sector or overwriting a block
			// already dirty in this one: flush first, keeping the cache
			// allocation alive so the next write can reuse it.
			if err := c.flush(true); err != nil {
				return err
			}
		}
		if err := c.enterSector(sector); err != nil {
			return err
		}
	}

	c.dirtyMask |= mask
	switch c.back {
	case backingRAM:
		return c.writeToRAM(blockIdx, src)
	case backingScratch:
		scratchAddr := c.g.scratchSectorAddr() + blockIdx*BlockSize
		return c.w.write(scratchAddr, src, c.g.PageSize)
	default:
		return fmt.Errorf("nflash: cache entered with no backing")
	}
}

func (c *cache) writeToRAM(blockIdx int, src []byte) error {
	pagesPerBlock := c.g.pagesPerBlock()
	for i := 0; i < pagesPerBlock; i++ {
		page := c.ram.pages[blockIdx*pagesPerBlock+i]
		copy(page, src[i*c.g.PageSize:(i+1)*c.g.PageSize])
	}
	return nil
}

// enterSector picks a backing strategy for a freshly-selected sector,
// preferring RAM and falling back to the scratch sector on allocation
// failure, then resets the dirty mask.
func (c *cache) enterSector(sector int) error {
	if c.ram == nil {
		if ram, ok := c.allocateRAMCache(); ok {
			c.ram = ram
			c.back = backingRAM
		}
	} else {
		c.back = backingRAM
	}

	if c.back != backingRAM {
		if err := c.w.eraseSector(c.g.scratchSectorAddr()); err != nil {
			return fmt.Errorf("%w: erase scratch sector: %v", ErrWireFault, err)
		}
		if err := c.w.waitReady(); err != nil {
			return err
		}
		c.back = backingScratch
	}

	c.currentSector = sector
	c.dirtyMask = 0
	return nil
}

// allocateRAMCache allocates one page buffer per page in the sector,
// piecewise so a fragmented heap never needs to satisfy one large
// contiguous request (spec §4.3, "RAM cache allocation"). ok is false if
// any individual allocation failed; in that case nothing is kept.
func (c *cache) allocateRAMCache() (rc *ramCache, ok bool) {
	n := c.g.blocksPerSector() * c.g.pagesPerBlock()
	pages := make([][]byte, 0, n)
	defer func() {
		if !ok {
			pages = nil // release every buffer allocated so far
		}
	}()
	for i := 0; i < n; i++ {
		buf, allocated := tryAlloc(c.g.PageSize)
		if !allocated {
			return nil, false
		}
		pages = append(pages, buf)
	}
	return &ramCache{pages: pages}, true
}

// tryAlloc is the allocation point the whole RAM-vs-scratch decision turns
// on. On a hosted Go runtime this never fails; it exists so the fallback
// path (and the tests that exercise it) have somewhere to hook a forced
// failure, mirroring the original firmware's gc_alloc returning NULL under
// memory pressure.
var tryAlloc = func(size int) ([]byte, bool) {
	return make([]byte, size), true
}

// flush commits the current sector's cached modifications back to its
// home address in flash. If keepCache is false, the RAM cache (if any) is
// released. See spec §4.3's five-step flush algorithm.
func (c *cache) flush(keepCache bool) error {
	if c.empty() {
		return nil
	}
	if c.ActivityLED != nil {
		c.ActivityLED.Out(gpio.High)
		defer c.ActivityLED.Out(gpio.Low)
	}

	var err error
	switch c.back {
	case backingRAM:
		err = c.flushRAM(keepCache)
	case backingScratch:
		err = c.flushScratch()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFlushFailed, err)
	}

	c.currentSector = noSectorLoaded
	c.dirtyMask = 0
	return nil
}

// flushRAM implements the RAM-backed flush: copy untouched sub-blocks into
// RAM, erase, write everything back page by page, then optionally free the
// cache.
func (c *cache) flushRAM(keepCache bool) error {
	pagesPerBlock := c.g.pagesPerBlock()
	blocksPerSector := c.g.blocksPerSector()

	for i := 0; i < blocksPerSector; i++ {
		if c.dirtyMask&(uint32(1)<<i) != 0 {
			continue
		}
		for j := 0; j < pagesPerBlock; j++ {
			pageAddr := c.currentSector + (i*pagesPerBlock+j)*c.g.PageSize
			if err := c.w.read(pageAddr, c.ram.pages[i*pagesPerBlock+j]); err != nil {
				return fmt.Errorf("copy clean block %d into ram: %w", i, err)
			}
		}
	}

	if err := c.w.eraseSector(c.currentSector); err != nil {
		return fmt.Errorf("erase sector: %w", err)
	}

	for i := 0; i < blocksPerSector; i++ {
		for j := 0; j < pagesPerBlock; j++ {
			pageAddr := c.currentSector + (i*pagesPerBlock+j)*c.g.PageSize
			page := c.ram.pages[i*pagesPerBlock+j]
			if err := c.w.programPage(pageAddr, page); err != nil {
				return fmt.Errorf("program block %d: %w", i, err)
			}
		}
	}

	if !keepCache {
		c.ram = nil
		c.back = backingNone
	}
	return nil
}

// flushScratch implements the scratch-backed flush: copy untouched
// sub-blocks from flash into the scratch sector (page granular), erase the
// real sector, then copy the scratch sector's full contents back.
func (c *cache) flushScratch() error {
	pagesPerBlock := c.g.pagesPerBlock()
	blocksPerSector := c.g.blocksPerSector()
	page := make([]byte, c.g.PageSize)

	for i := 0; i < blocksPerSector; i++ {
		if c.dirtyMask&(uint32(1)<<i) != 0 {
			continue
		}
		srcBlock := c.currentSector + i*BlockSize
		dstBlock := c.g.scratchSectorAddr() + i*BlockSize
		for j := 0; j < pagesPerBlock; j++ {
			off := j * c.g.PageSize
			if err := c.w.read(srcBlock+off, page); err != nil {
				return fmt.Errorf("copy clean block %d into scratch: %w", i, err)
			}
			if err := c.w.programPage(dstBlock+off, page); err != nil {
				return fmt.Errorf("copy clean block %d into scratch: %w", i, err)
			}
		}
	}

	if err := c.w.eraseSector(c.currentSector); err != nil {
		return fmt.Errorf("erase sector: %w", err)
	}

	for i := 0; i < blocksPerSector; i++ {
		srcBlock := c.g.scratchSectorAddr() + i*BlockSize
		dstBlock := c.currentSector + i*BlockSize
		for j := 0; j < pagesPerBlock; j++ {
			off := j * c.g.PageSize
			if err := c.w.read(srcBlock+off, page); err != nil {
				return fmt.Errorf("copy scratch block %d back: %w", i, err)
			}
			if err := c.w.programPage(dstBlock+off, page); err != nil {
				return fmt.Errorf("copy scratch block %d back: %w", i, err)
			}
		}
	}
	return nil
}

// write is the wire-layer counterpart used by stageWrite's scratch path:
// program data across as many pages as it spans, starting at addr.
func (w *wire) write(addr int, data []byte, pageSize int) error {
	for off := 0; off < len(data); off += pageSize {
		end := min(off+pageSize, len(data))
		if err := w.programPage(addr+off, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}
