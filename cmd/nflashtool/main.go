// Command nflashtool is a bench harness for bring-up: it drives a real
// nflash.BlockDevice against a breadboarded SPI NOR flash chip wired to an
// FT2232H MPSSE bridge, the same rig used for gice's FPGA configuration
// flash, so the block device core can be exercised against real hardware
// before it is soldered onto a board.
package main

import (
	"fmt"
	"os"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	nflashtool <command> [arguments]

Commands:
	identify	print the identified chip's name and derived geometry
	readblock	read one 512-byte block
	writeblock	write one 512-byte block from a file, then flush
	cat		dump every block, synthetic MBR included, to stdout
	flush		force a flush of any pending cached writes
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch cmd := os.Args[1]; cmd {
	case "identify":
		identifyCmd(os.Args[2:])
	case "readblock":
		readBlockCmd(os.Args[2:])
	case "writeblock":
		writeBlockCmd(os.Args[2:])
	case "cat":
		catCmd(os.Args[2:])
	case "flush":
		flushCmd(os.Args[2:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}
