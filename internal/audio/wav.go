package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	wavHeaderSize = 44

	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// EncodeWAV wraps raw IEEE-float samples in a RIFF/WAVE container. The sample
// bytes are copied verbatim; the caller is trusted to pass whole frames.
func EncodeWAV(samples []byte, channels uint16, sampleRate uint32, bitsPerSample uint16) []byte {
	return encodeWAV(samples, wavFormatFloat, channels, sampleRate, bitsPerSample)
}

func encodeWAV(samples []byte, formatTag, channels uint16, sampleRate uint32, bitsPerSample uint16) []byte {
	byteRate := sampleRate * uint32(channels) * uint32(bitsPerSample) / 8
	blockAlign := channels * bitsPerSample / 8
	dataLen := uint32(len(samples))

	buf := make([]byte, wavHeaderSize+len(samples))

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataLen)
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatTag)
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataLen)
	copy(buf[wavHeaderSize:], samples)

	return buf
}

// WriteWAVFile writes samples captured in format to path. Float formats use
// format tag 3, integer formats plain PCM.
func WriteWAVFile(path string, samples []byte, format AudioFormat) error {
	tag := uint16(wavFormatFloat)
	if format.SampleKind == SampleInt {
		tag = wavFormatPCM
	}
	data := encodeWAV(samples, tag, format.Channels, format.SampleRate, format.BitsPerSample)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write WAV file %s: %w", path, err)
	}
	return nil
}
