package nflash

import "testing"

func newTestDevice(f *fakeFlash, g Geometry) *BlockDevice {
	w := newTestWire(f)
	return &BlockDevice{w: w, g: g, c: newCache(w, g)}
}

func TestPowerUpDownRoundTrip(t *testing.T) {
	d := newTestDevice(newFakeFlash(testGeometry), testGeometry)

	if err := d.PowerUp(); err != nil {
		t.Fatalf("PowerUp() error = %v", err)
	}
	if err := d.PowerDown(); err != nil {
		t.Fatalf("PowerDown() error = %v", err)
	}
}

func TestReadBlockZeroIsMBR(t *testing.T) {
	d := newTestDevice(newFakeFlash(testGeometry), testGeometry)

	dest := make([]byte, BlockSize)
	if err := d.ReadBlock(0, dest); err != nil {
		t.Fatalf("ReadBlock(0) error = %v", err)
	}
	if dest[510] != 0x55 || dest[511] != 0xaa {
		t.Error("block 0 must be the synthesized MBR")
	}
}

func TestWriteBlockZeroIsIgnored(t *testing.T) {
	d := newTestDevice(newFakeFlash(testGeometry), testGeometry)

	if err := d.WriteBlock(0, block(0xaa)); err != nil {
		t.Fatalf("WriteBlock(0) error = %v", err)
	}
	dest := make([]byte, BlockSize)
	if err := d.ReadBlock(0, dest); err != nil {
		t.Fatalf("ReadBlock(0) error = %v", err)
	}
	if dest[510] != 0x55 || dest[511] != 0xaa {
		t.Error("writing block 0 must not disturb the synthesized MBR")
	}
}

func TestReadBlockOutOfRange(t *testing.T) {
	d := newTestDevice(newFakeFlash(testGeometry), testGeometry)

	dest := make([]byte, BlockSize)
	err := d.ReadBlock(d.BlockCount(), dest)
	if err == nil {
		t.Fatal("expected an error reading past BlockCount")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	d := newTestDevice(newFakeFlash(testGeometry), testGeometry)

	want := block(0x5c)
	idx := PartitionStartBlock
	if err := d.WriteBlock(idx, want); err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}
	got := make([]byte, BlockSize)
	if err := d.ReadBlock(idx, got); err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}
	if string(got) != string(want) {
		t.Error("read after write did not return the written contents")
	}
}

func TestFlushPersistsAcrossFreshCache(t *testing.T) {
	f := newFakeFlash(testGeometry)
	d := newTestDevice(f, testGeometry)

	want := block(0x11)
	idx := PartitionStartBlock
	if err := d.WriteBlock(idx, want); err != nil {
		t.Fatalf("WriteBlock() error = %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	d2 := newTestDevice(f, testGeometry)
	got := make([]byte, BlockSize)
	if err := d2.ReadBlock(idx, got); err != nil {
		t.Fatalf("ReadBlock() on fresh device error = %v", err)
	}
	if string(got) != string(want) {
		t.Error("flushed write not visible to a fresh cache reading the same flash")
	}
}

func TestUnidentifiedDeviceRejectsBlockOps(t *testing.T) {
	d := newTestDevice(newFakeFlash(Geometry{}), Geometry{})

	if d.BlockCount() != PartitionStartBlock {
		t.Errorf("BlockCount() = %d, want %d", d.BlockCount(), PartitionStartBlock)
	}

	dest := make([]byte, BlockSize)
	if err := d.ReadBlock(PartitionStartBlock, dest); err != ErrOutOfRange {
		t.Errorf("ReadBlock() error = %v, want ErrOutOfRange", err)
	}
}

func TestReadBlocksAndWriteBlocksMultiBlock(t *testing.T) {
	d := newTestDevice(newFakeFlash(testGeometry), testGeometry)

	const n = 3
	src := make([]byte, n*BlockSize)
	for i := 0; i < n; i++ {
		copy(src[i*BlockSize:(i+1)*BlockSize], block(byte(i+1)))
	}
	if err := d.WriteBlocks(PartitionStartBlock, n, src); err != nil {
		t.Fatalf("WriteBlocks() error = %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	dest := make([]byte, n*BlockSize)
	if err := d.ReadBlocks(PartitionStartBlock, n, dest); err != nil {
		t.Fatalf("ReadBlocks() error = %v", err)
	}
	if string(dest) != string(src) {
		t.Error("multi-block round trip did not preserve contents")
	}
}
