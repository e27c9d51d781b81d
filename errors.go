package nflash

import "errors"

// Error kinds the core distinguishes, per the error handling design.
var (
	// ErrNotPresent means the device has no usable geometry — either the
	// chip hasn't been identified yet or ReadJEDECID returned an unknown ID.
	ErrNotPresent = errors.New("nflash: medium not present")

	// ErrWireFault wraps any failure from the SPI transceive layer. It
	// aborts the current block operation; any previously cached writes are
	// left exactly as they were.
	ErrWireFault = errors.New("nflash: spi wire fault")

	// ErrWriteProtected is returned by the USB-MSC adapter's Write when the
	// filesystem currently owns the medium writable.
	ErrWriteProtected = errors.New("nflash: write protected")

	// ErrOutOfRange is returned for a block index at or past BlockCount().
	// Indices below PartitionStartBlock never produce it: they are handled
	// as the synthetic MBR or as reserved blocks.
	ErrOutOfRange = errors.New("nflash: block index out of range")

	// ErrFlushFailed means a step of flush failed partway through. The
	// in-memory cache state is preserved so a retry is possible.
	ErrFlushFailed = errors.New("nflash: flush failed")

	// ErrNotSupported is returned by operations this device has no
	// hardware support for, such as ejecting a soldered-down flash chip.
	ErrNotSupported = errors.New("nflash: not supported")
)
