package nflash

import "testing"

func newTestWire(f *fakeFlash) *wire {
	return &wire{conn: f, cs: f}
}

func TestWireIdentify(t *testing.T) {
	f := newFakeFlash(testGeometry)
	w := newTestWire(f)

	id, err := w.identify()
	if err != nil {
		t.Fatalf("identify() error = %v", err)
	}
	if id != f.id {
		t.Errorf("identify() = %v, want %v", id, f.id)
	}
}

func TestWireReadWriteRoundTrip(t *testing.T) {
	f := newFakeFlash(testGeometry)
	w := newTestWire(f)

	want := make([]byte, 256)
	for i := range want {
		want[i] = byte(i)
	}
	if err := w.programPage(0, want); err != nil {
		t.Fatalf("programPage() error = %v", err)
	}

	got := make([]byte, 256)
	if err := w.read(0, got); err != nil {
		t.Fatalf("read() error = %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("read back %v, want %v", got, want)
	}
}

func TestWireEraseSectorSetsAllOnes(t *testing.T) {
	f := newFakeFlash(testGeometry)
	w := newTestWire(f)

	if err := w.programPage(0, []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("programPage() error = %v", err)
	}
	if err := w.eraseSector(0); err != nil {
		t.Fatalf("eraseSector() error = %v", err)
	}

	got := make([]byte, 4)
	if err := w.read(0, got); err != nil {
		t.Fatalf("read() error = %v", err)
	}
	for _, b := range got {
		if b != 0xff {
			t.Errorf("erased flash byte = %#x, want 0xff", b)
		}
	}
}

func TestWireWaitReadyPollsUntilClear(t *testing.T) {
	f := newFakeFlash(testGeometry)
	f.busyPolls = 3
	w := newTestWire(f)

	if err := w.waitReady(); err != nil {
		t.Fatalf("waitReady() error = %v", err)
	}
	if f.busyPolls != 0 {
		t.Errorf("busyPolls = %d, want 0 after waitReady", f.busyPolls)
	}
}

func TestWriteEnableSetsWEL(t *testing.T) {
	f := newFakeFlash(testGeometry)
	w := newTestWire(f)

	if err := w.writeEnable(); err != nil {
		t.Fatalf("writeEnable() error = %v", err)
	}
	sr, err := w.readStatus()
	if err != nil {
		t.Fatalf("readStatus() error = %v", err)
	}
	if !sr.writeEnabled() {
		t.Errorf("status %v, want WEL set", sr)
	}
}

func TestStatusRegisterString(t *testing.T) {
	if got := statusRegister(0).String(); got == "" {
		t.Error("String() of zero status must not be empty")
	}
	busy := statusRegister(1 << 0)
	if !busy.busy() || busy.writeEnabled() {
		t.Errorf("statusRegister(0b01) busy/writeEnabled = %v/%v, want true/false", busy.busy(), busy.writeEnabled())
	}
}
