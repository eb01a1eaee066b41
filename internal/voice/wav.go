package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const wavHeaderSize = 44

// ProbeWAV reads the RIFF header of a WAV file and fills in sample rate,
// channel count and duration. Chunks other than "fmt " and "data" are skipped.
func ProbeWAV(data []byte) (Format, error) {
	f := Format{Encoding: EncodingWAV}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return f, fmt.Errorf("not a RIFF/WAVE file")
	}

	var byteRate uint32
	var dataSize uint32
	haveFmt, haveData := false, false

	off := 12
	for off+8 <= len(data) && !(haveFmt && haveData) {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return f, fmt.Errorf("truncated fmt chunk")
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataSize = size
			// Streaming recorders often leave the size unset
			if remaining := uint32(len(data) - body); size == 0 || size > remaining {
				dataSize = remaining
			}
			haveData = true
		}

		// chunks are word aligned
		off = body + int(size) + int(size&1)
	}

	if !haveFmt || !haveData {
		return f, fmt.Errorf("missing fmt or data chunk")
	}
	if byteRate == 0 {
		return f, fmt.Errorf("invalid byte rate")
	}

	f.Duration = time.Duration(float64(dataSize) / float64(byteRate) * float64(time.Second))
	return f, nil
}

// EncodeWAV wraps little-endian PCM samples in a canonical 44-byte WAV header
func EncodeWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	if channels <= 0 {
		channels = 1
	}
	if bitsPerSample <= 0 {
		bitsPerSample = 16
	}
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// PCMFromWAV returns the body of the data chunk, dropping the RIFF header and
// any other chunks
func PCMFromWAV(data []byte) ([]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	off := 12
	for off+8 <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if string(data[off:off+4]) == "data" {
			if size == 0 || body+size > len(data) {
				size = len(data) - body
			}
			return data[body : body+size], nil
		}
		off = body + size + size&1
	}
	return nil, fmt.Errorf("missing data chunk")
}
