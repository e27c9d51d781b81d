package main

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// openFT2232H finds the FT2232H MPSSE bridge, exactly as cmd/gice does for
// its FPGA flash. The bench rig's flash chip is wired the same way the
// FPGA's configuration flash was: MOSI/MISO/SCK on ADBUS0-2, chip select
// on ADBUS4.
func openFT2232H() (*ftdi.FT232H, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host initialization failed: %w", err)
	}

	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			return ft, nil
		}
	}

	return nil, errors.New("FT2232H device not found")
}

// connectSPI opens the MPSSE SPI port and returns the connection and chip
// select pin nflash.New expects.
func connectSPI() (spi.Conn, gpio.PinIO, error) {
	ft, err := openFT2232H()
	if err != nil {
		return nil, nil, err
	}

	sp, err := ft.SPI()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get SPI port: %w", err)
	}
	defer sp.Close()

	const clk = 30 * physic.MegaHertz // [AN_135 3.2.1 Divisors]
	mode := spi.Mode0
	conn, err := sp.Connect(clk, mode, 8)
	if err != nil {
		return nil, nil, err
	}

	cs := ft.D4 // ADBUS4 (GPIOL0 -> CS)
	return conn, cs, nil
}
