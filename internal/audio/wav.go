package audio

import "encoding/binary"

// Format describes PCM audio parameters.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is the normalized transcription target: 16 kHz mono 16-bit.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

func (f Format) withDefaults() Format {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultFormat.SampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultFormat.Channels
	}
	if f.BitDepth <= 0 {
		f.BitDepth = DefaultFormat.BitDepth
	}
	return f
}

// SilentWAV returns a valid 44-byte WAV header with no samples in
// DefaultFormat.
func SilentWAV() []byte {
	return SilentWAVFor(DefaultFormat)
}

// SilentWAVFor returns an empty WAV whose header declares format. Zero fields
// fall back to DefaultFormat.
func SilentWAVFor(format Format) []byte {
	f := format.withDefaults()
	buf := make([]byte, 44)
	le := binary.LittleEndian
	byteRate := f.SampleRate * f.Channels * f.BitDepth / 8
	blockAlign := f.Channels * f.BitDepth / 8

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], 36)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1)
	le.PutUint16(buf[22:24], uint16(f.Channels))
	le.PutUint32(buf[24:28], uint32(f.SampleRate))
	le.PutUint32(buf[28:32], uint32(byteRate))
	le.PutUint16(buf[32:34], uint16(blockAlign))
	le.PutUint16(buf[34:36], uint16(f.BitDepth))
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], 0)
	return buf
}

// IsSilent reports whether data is a WAV with an empty data chunk.
func IsSilent(data []byte) bool {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return false
	}
	return len(data) == 44 && binary.LittleEndian.Uint32(data[40:44]) == 0
}
