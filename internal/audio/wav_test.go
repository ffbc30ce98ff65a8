package audio_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/loopcap/internal/audio"
)

func TestEncodeWAV_HeaderFields(t *testing.T) {
	for _, dataLen := range []int{0, 1, 8, 4096, 44100 * 8} {
		samples := make([]byte, dataLen)
		for i := range samples {
			samples[i] = byte(i)
		}

		out := audio.EncodeWAV(samples, 2, 44100, 32)
		require.Len(t, out, 44+dataLen)

		assert.Equal(t, "RIFF", string(out[0:4]))
		assert.Equal(t, uint32(36+dataLen), binary.LittleEndian.Uint32(out[4:8]))
		assert.Equal(t, "WAVE", string(out[8:12]))
		assert.Equal(t, "fmt ", string(out[12:16]))
		assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(out[16:20]))
		assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(out[20:22]))
		assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[22:24]))
		assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(out[24:28]))
		assert.Equal(t, uint32(44100*2*32/8), binary.LittleEndian.Uint32(out[28:32]))
		assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(out[32:34]))
		assert.Equal(t, uint16(32), binary.LittleEndian.Uint16(out[34:36]))
		assert.Equal(t, "data", string(out[36:40]))
		assert.Equal(t, uint32(dataLen), binary.LittleEndian.Uint32(out[40:44]))
		assert.Equal(t, samples, out[44:])
	}
}

func TestEncodeWAV_OddLengthCopiedVerbatim(t *testing.T) {
	out := audio.EncodeWAV([]byte{1, 2, 3}, 2, 48000, 32)
	assert.Equal(t, []byte{1, 2, 3}, out[44:])
	assert.Equal(t, uint32(39), binary.LittleEndian.Uint32(out[4:8]))
}

func TestWriteWAVFile_IntegerFormatUsesPCMTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcm.wav")
	format := audio.AudioFormat{SampleRate: 16000, Channels: 1, BitsPerSample: 16, SampleKind: audio.SampleInt}

	require.NoError(t, audio.WriteWAVFile(path, []byte{0, 1, 2, 3}, format))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]))
}

func TestAudioFormat_Validate(t *testing.T) {
	assert.NoError(t, audio.DefaultFormat().Validate())
	assert.NoError(t, audio.AudioFormat{SampleRate: 48000, Channels: 1, BitsPerSample: 24, SampleKind: audio.SampleInt}.Validate())

	bad := []audio.AudioFormat{
		{SampleRate: 0, Channels: 2, BitsPerSample: 32, SampleKind: audio.SampleFloat},
		{SampleRate: 44100, Channels: 0, BitsPerSample: 32, SampleKind: audio.SampleFloat},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 16, SampleKind: audio.SampleFloat},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 8, SampleKind: audio.SampleInt},
		{SampleRate: 44100, Channels: 2, BitsPerSample: 32, SampleKind: "double"},
	}
	for _, f := range bad {
		assert.ErrorIs(t, f.Validate(), audio.ErrFormatNegotiation, f.String())
	}
}
