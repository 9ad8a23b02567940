// Package physics holds the packed node/vector primitives and the
// simulation parameter model shared by both executors. Nothing in this
// package suspends or locks; it is pure data plus encode/decode.
package physics

import (
	"encoding/binary"
	"math"
)

// RecordSize is the exact wire and compute size of a BinaryNodeRecord, in
// bytes: position(12) + velocity(12) + mass(1) + flags(1) + padding(2).
const RecordSize = 28

// FlagActive marks a node as participating in the simulation.
const FlagActive uint8 = 1

// Vec3 is three IEEE-754 32-bit floats. No NaN invariant is enforced here;
// infinities are treated as an upstream error, not checked in this package.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns the component-wise sum.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns the component-wise difference.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// BinaryNodeRecord is the wire and compute representation of a node's
// physical state. Field order is fixed and MUST match across the CPU
// executor, the GPU kernel, and the binary broadcast payload.
type BinaryNodeRecord struct {
	Position Vec3
	Velocity Vec3
	Mass     uint8
	Flags    uint8
	_        [2]uint8 // padding, always zero on the wire
}

// Encode writes the little-endian 28-byte wire form of r into dst, which
// must be at least RecordSize bytes.
func (r BinaryNodeRecord) Encode(dst []byte) {
	_ = dst[RecordSize-1] // bounds check hint
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(r.Position.X))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(r.Position.Y))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(r.Position.Z))
	binary.LittleEndian.PutUint32(dst[12:16], math.Float32bits(r.Velocity.X))
	binary.LittleEndian.PutUint32(dst[16:20], math.Float32bits(r.Velocity.Y))
	binary.LittleEndian.PutUint32(dst[20:24], math.Float32bits(r.Velocity.Z))
	dst[24] = r.Mass
	dst[25] = r.Flags
	dst[26] = 0
	dst[27] = 0
}

// DecodeBinaryNodeRecord reads a 28-byte little-endian record from src.
func DecodeBinaryNodeRecord(src []byte) BinaryNodeRecord {
	_ = src[RecordSize-1]
	return BinaryNodeRecord{
		Position: Vec3{
			X: math.Float32frombits(binary.LittleEndian.Uint32(src[0:4])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(src[8:12])),
		},
		Velocity: Vec3{
			X: math.Float32frombits(binary.LittleEndian.Uint32(src[12:16])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(src[16:20])),
			Z: math.Float32frombits(binary.LittleEndian.Uint32(src[20:24])),
		},
		Mass:  src[24],
		Flags: src[25],
	}
}

// EncodeRecords packs a slice of records into a single little-endian
// buffer of exactly RecordSize*len(records) bytes, header-less.
func EncodeRecords(records []BinaryNodeRecord) []byte {
	buf := make([]byte, RecordSize*len(records))
	for i, r := range records {
		r.Encode(buf[i*RecordSize : (i+1)*RecordSize])
	}
	return buf
}

// MassFromFileSize maps a file size in bytes to the clamped u8 mass value
// used by the graph builder. The mapping is monotonic: larger files never
// produce a smaller mass.
func MassFromFileSize(fileSize int64) uint8 {
	// log-scaled (10*log2(size)) so a handful of huge files don't saturate
	// every mass to 255: 1KB maps to 100, 1MB to 200, and only files of
	// about 45MiB and up reach 255.
	const minSize = 1.0
	size := float64(fileSize)
	if size < minSize {
		size = minSize
	}
	scaled := 10.0 * logBase(size, 2)
	if scaled < 1 {
		scaled = 1
	}
	if scaled > 255 {
		scaled = 255
	}
	return uint8(scaled)
}

func logBase(x, base float64) float64 {
	return math.Log(x) / math.Log(base)
}
