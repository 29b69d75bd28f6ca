package capture

import (
	"bytes"
	"encoding/binary"

	"github.com/m-mizutani/sahayak/pkg/model"
)

const wavHeaderSize = 44

// encodeWAV wraps little-endian PCM in a canonical RIFF/WAVE container.
// A trailing partial sample frame is dropped.
func encodeWAV(format model.PCMFormat, pcm []byte) ([]byte, int) {
	if align := format.BlockAlign(); align > 0 {
		pcm = pcm[:len(pcm)-len(pcm)%align]
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, le, uint32(16))
	_ = binary.Write(buf, le, uint16(1)) // PCM
	_ = binary.Write(buf, le, uint16(format.Channels))
	_ = binary.Write(buf, le, uint32(format.SampleRate))
	_ = binary.Write(buf, le, uint32(format.ByteRate()))
	_ = binary.Write(buf, le, uint16(format.BlockAlign()))
	_ = binary.Write(buf, le, uint16(format.BitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, le, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), len(pcm)
}
