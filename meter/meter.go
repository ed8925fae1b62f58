// Package meter holds the wire protocol of the USB power meter: the
// device identity, the fixed command packets, and the layout of the
// telemetry reports it streams back.
package meter

import "time"

// USB identity of the meter. Discovery is by this fixed pair only.
const (
	VendorID  = 0x2E3C
	ProductID = 0x5558
)

// PacketLen is the size of every report, inbound and outbound.
const PacketLen = 64

// Every packet starts with the marker byte. Inbound telemetry carries
// the data subtype in the second byte; anything else is not telemetry.
const (
	marker   = 0xAA
	typeData = 0x04
)

// Little-endian field offsets within a telemetry packet. Byte 14 is
// unused by this firmware.
const (
	voltageOffset = 2  // uint32
	currentOffset = 6  // uint32
	dpOffset      = 10 // uint16, mV
	dnOffset      = 12 // uint16, mV
	tempOffset    = 15 // uint16, ticks of 0.1 C
)

// electricalScale converts the raw voltage and current fields to volts
// and amps. The factor is firmware specific and not self-describing in
// the packet; changing it requires validation against hardware.
const electricalScale = 100000

// Raw temperature readings at or outside these bounds are reported by
// the firmware when no probe value is available.
const (
	tempRawMin = 0
	tempRawMax = 1000
)

// InitDelay is the pause after each init command write.
const InitDelay = 100 * time.Millisecond

func command(id, trailer byte) []byte {
	cmd := make([]byte, PacketLen)
	cmd[0] = marker
	cmd[1] = id
	cmd[PacketLen-1] = trailer
	return cmd
}

// InitCommands is the fixed handshake written once after claiming the
// interface. The second command is deliberately sent twice. The
// trailer bytes are opaque firmware constants, not a checksum we
// compute.
var InitCommands = [][]byte{
	command(0x81, 0x8E),
	command(0x82, 0x96),
	command(0x82, 0x96),
}

// KeepAlive must be written about once a second or the device stops
// streaming telemetry.
var KeepAlive = command(0x83, 0x9E)
