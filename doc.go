// Package nflash implements the sector-caching, write-staging block device
// that sits between an on-board SPI NOR flash chip and two consumers: a
// USB Mass Storage Class target endpoint and an on-device filesystem
// driver. It reconciles NOR flash's large erase granularity with both
// consumers' 512-byte block protocol.
//
// # References:
//
// Flash command framing and the sector-cache/scratch-sector staging
// algorithm are ported from the SPI NOR flash block device originally
// written for the MicroPython/CircuitPython atmel-samd port
// (spi_flash.c, access_vfs.c).
//
// FTDI (https://ftdichip.com/document/application-notes/), used by the
// cmd/nflashtool bench harness to drive a real chip over an FT2232H MPSSE
// bridge during bring-up:
//   - [FTDI-AN_108]: Command Processor for MPSSE and MCU Host Bus Emulation Modes (https://ftdichip.com/wp-content/uploads/2020/08/AN_108_Command_Processor_for_MPSSE_and_MCU_Host_Bus_Emulation_Modes.pdf)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//
// SPI Flash
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package nflash
