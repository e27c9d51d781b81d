package nflash

// synthesizeMBR builds the synthetic MBR for block 0: no boot code, one
// partition entry describing [PartitionStartBlock, blockCount) as FAT12,
// three empty entries, and the 0x55 0xAA signature. Kept as a pure
// function, independent of the cache/wire layers, per spec §9's
// "MBR synthesis" design note — block_count is its only input.
func synthesizeMBR(blockCount int) [BlockSize]byte {
	var dest [BlockSize]byte
	// dest[0:446] is already zero: no boot code.

	buildPartitionEntry(dest[446:462], PartitionStartBlock, blockCount-PartitionStartBlock)
	// dest[462:510] is already zero: three empty partition entries.

	dest[510] = 0x55
	dest[511] = 0xAA
	return dest
}

const partitionTypeFAT12 = 0x01

// buildPartitionEntry fills a 16-byte MBR partition entry. startBlock and
// numBlocks of 0 produce an empty entry (all-zero CHS fields); otherwise
// CHS start/end are the documented placeholder 0xff 0xff 0xff, since this
// device never reports real cylinder/head/sector geometry.
func buildPartitionEntry(buf []byte, startBlock, numBlocks int) {
	_ = buf[15] // bounds check hint: exactly one 16-byte entry

	buf[0] = 0 // boot flag

	chs := byte(0x00)
	partType := byte(0)
	if numBlocks != 0 {
		chs = 0xff
		partType = partitionTypeFAT12
	}
	buf[1], buf[2], buf[3] = chs, chs, chs
	buf[4] = partType
	buf[5], buf[6], buf[7] = chs, chs, chs

	putLE32(buf[8:12], uint32(startBlock))
	putLE32(buf[12:16], uint32(numBlocks))
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
