package meter

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrBadPacket marks a report that does not carry telemetry: wrong
// length or wrong header bytes. Callers discard these silently.
var ErrBadPacket = errors.New("not a telemetry packet")

// Packet is one raw 64-byte report from the meter.
type Packet [PacketLen]byte

func (p *Packet) read2(off int) uint16 { return binary.LittleEndian.Uint16(p[off : off+2]) }
func (p *Packet) read4(off int) uint32 { return binary.LittleEndian.Uint32(p[off : off+4]) }

// Valid reports whether the packet carries telemetry.
func (p *Packet) Valid() bool { return p[0] == marker && p[1] == typeData }

// Voltage returns the bus voltage in volts.
func (p *Packet) Voltage() float64 { return float64(p.read4(voltageOffset)) / electricalScale }

// Current returns the load current in amps.
func (p *Packet) Current() float64 { return float64(p.read4(currentOffset)) / electricalScale }

// DP returns the D+ data line voltage in volts.
func (p *Packet) DP() float64 { return float64(p.read2(dpOffset)) / 1000 }

// DN returns the D- data line voltage in volts.
func (p *Packet) DN() float64 { return float64(p.read2(dnOffset)) / 1000 }

// Temperature returns degrees C, or NaN when the raw field is outside
// the range the firmware uses for real probe values.
func (p *Packet) Temperature() float64 {
	raw := p.read2(tempOffset)
	if raw > tempRawMin && raw < tempRawMax {
		return float64(raw) / 10
	}
	return math.NaN()
}

// Reading is the decoded physical view of one telemetry packet. The
// temperature is NaN when the meter has no real probe value.
type Reading struct {
	Voltage     float64
	Current     float64
	Power       float64
	Temperature float64
	DP          float64
	DN          float64
}

// Decode validates buf and extracts a Reading. Short buffers and
// packets without the telemetry header return ErrBadPacket.
func Decode(buf []byte) (Reading, error) {
	if len(buf) < PacketLen {
		return Reading{}, ErrBadPacket
	}
	var p Packet
	copy(p[:], buf)
	if !p.Valid() {
		return Reading{}, ErrBadPacket
	}
	v := p.Voltage()
	i := p.Current()
	return Reading{
		Voltage:     v,
		Current:     i,
		Power:       v * i,
		Temperature: p.Temperature(),
		DP:          p.DP(),
		DN:          p.DN(),
	}, nil
}
