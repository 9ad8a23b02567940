package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryNodeRecordRoundTrip(t *testing.T) {
	r := BinaryNodeRecord{
		Position: Vec3{X: 1.5, Y: -2.25, Z: 3.0},
		Velocity: Vec3{X: -0.125, Y: 4.0, Z: -8.5},
		Mass:     200,
		Flags:    FlagActive,
	}

	buf := make([]byte, RecordSize)
	r.Encode(buf)
	got := DecodeBinaryNodeRecord(buf)

	assert.Equal(t, r, got)
}

func TestBinaryNodeRecordEncodeIsLittleEndian(t *testing.T) {
	r := BinaryNodeRecord{Position: Vec3{X: 1}}
	buf := make([]byte, RecordSize)
	r.Encode(buf)

	// 1.0f32 = 0x3F800000; little-endian puts the low byte first.
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, buf[0:4])
}

func TestEncodeRecordsLengthIsRecordSizeTimesCount(t *testing.T) {
	records := make([]BinaryNodeRecord, 5)
	buf := EncodeRecords(records)
	require.Len(t, buf, RecordSize*5)
}

func TestEncodeRecordsEmptyIsEmpty(t *testing.T) {
	buf := EncodeRecords(nil)
	assert.Len(t, buf, 0)
}

func TestEncodeRecordsRoundTripsEachRecordInOrder(t *testing.T) {
	records := []BinaryNodeRecord{
		{Position: Vec3{X: 1}, Mass: 10, Flags: FlagActive},
		{Position: Vec3{X: 2}, Mass: 20, Flags: 0},
		{Position: Vec3{X: 3}, Mass: 30, Flags: FlagActive},
	}
	buf := EncodeRecords(records)
	require.Len(t, buf, RecordSize*len(records))

	for i, want := range records {
		got := DecodeBinaryNodeRecord(buf[i*RecordSize : (i+1)*RecordSize])
		assert.Equal(t, want, got)
	}
}

func TestMassFromFileSizeIsMonotonic(t *testing.T) {
	small := MassFromFileSize(10)
	medium := MassFromFileSize(10_000)
	large := MassFromFileSize(10_000_000)

	assert.LessOrEqual(t, small, medium)
	assert.LessOrEqual(t, medium, large)
	assert.GreaterOrEqual(t, small, uint8(1))
	assert.LessOrEqual(t, large, uint8(255))
}
