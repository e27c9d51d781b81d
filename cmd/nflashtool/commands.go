package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/nflash"
)

func openDevice() *nflash.BlockDevice {
	conn, cs, err := connectSPI()
	if err != nil {
		fatalf("SPI connection failed: %v", err)
	}
	dev := nflash.New(conn, cs)
	if err := dev.PowerUp(); err != nil {
		fatalf("power up failed: %v", err)
	}
	if err := dev.Identify(); err != nil {
		fatalf("identify failed: %v", err)
	}
	return dev
}

func identifyCmd(args []string) {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	fs.Parse(args)

	dev := openDevice()
	defer dev.PowerDown()
	g := dev.Geometry()
	if g.FlashSize == 0 {
		fmt.Fprintln(os.Stderr, "unknown flash chip")
		os.Exit(1)
	}
	fmt.Printf("chip:         %s\n", g.Name)
	fmt.Printf("flash size:   %d bytes\n", g.FlashSize)
	fmt.Printf("sector size:  %d bytes\n", g.SectorSize)
	fmt.Printf("page size:    %d bytes\n", g.PageSize)
	fmt.Printf("block size:   %d bytes\n", dev.BlockSize())
	fmt.Printf("block count:  %d\n", dev.BlockCount())
}

func readBlockCmd(args []string) {
	fs := flag.NewFlagSet("readblock", flag.ExitOnError)
	var outFile string
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatalUsage("usage: nflashtool readblock [-o file] <block index>")
	}
	idx := parseBlockIndex(fs.Arg(0))

	dev := openDevice()
	defer dev.PowerDown()
	buf := make([]byte, nflash.BlockSize)
	if err := dev.ReadBlock(idx, buf); err != nil {
		fatalf("read block %d failed: %v", idx, err)
	}

	if outFile == "" {
		fmt.Println(hex.Dump(buf))
		return
	}
	if err := os.WriteFile(outFile, buf, 0644); err != nil {
		fatalf("write file failed: %v", err)
	}
}

func writeBlockCmd(args []string) {
	fs := flag.NewFlagSet("writeblock", flag.ExitOnError)
	var inFile string
	fs.StringVar(&inFile, "f", "", "input file, exactly 512 bytes")
	fs.Parse(args)

	if fs.NArg() != 1 || inFile == "" {
		fatalUsage("usage: nflashtool writeblock -f file <block index>")
	}
	idx := parseBlockIndex(fs.Arg(0))

	data, err := os.ReadFile(inFile)
	if err != nil {
		fatalf("failed to read input file: %v", err)
	}
	if len(data) != nflash.BlockSize {
		fatalf("input must be exactly %d bytes, got %d", nflash.BlockSize, len(data))
	}

	dev := openDevice()
	defer dev.PowerDown()
	if err := dev.WriteBlock(idx, data); err != nil {
		fatalf("write block %d failed: %v", idx, err)
	}
	if err := dev.Flush(); err != nil {
		fatalf("flush failed: %v", err)
	}
}

func catCmd(args []string) {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	fs.Parse(args)

	dev := openDevice()
	defer dev.PowerDown()
	buf := make([]byte, nflash.BlockSize)
	for i := 0; i < dev.BlockCount(); i++ {
		if err := dev.ReadBlock(i, buf); err != nil {
			fatalf("read block %d failed: %v", i, err)
		}
		if _, err := os.Stdout.Write(buf); err != nil {
			fatalf("write stdout failed: %v", err)
		}
	}
}

func flushCmd(args []string) {
	fs := flag.NewFlagSet("flush", flag.ExitOnError)
	fs.Parse(args)

	dev := openDevice()
	defer dev.PowerDown()
	if err := dev.Flush(); err != nil {
		fatalf("flush failed: %v", err)
	}
}

func parseBlockIndex(s string) int {
	var idx int
	if _, err := fmt.Sscanf(s, "%d", &idx); err != nil {
		fatalUsage("invalid block index %q", s)
	}
	return idx
}
