package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into a packed signed 32-bit buffer.
func ReadWAV(path string) (*Buffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid WAV file", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels < 1 || bitDepth < 8 || bitDepth > 32 {
		return nil, 0, fmt.Errorf("%w: %d-bit %d channel WAV", ErrUnsupportedFormat, bitDepth, channels)
	}

	data := make([]byte, len(pcm.Data)*4)
	for i, v := range pcm.Data {
		if bitDepth == 8 {
			v -= 128
		}
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v)<<(32-bitDepth)))
	}

	buf, err := NewPackedBuffer(FormatS32, channels, data)
	if err != nil {
		return nil, 0, err
	}
	return buf, int(dec.SampleRate), nil
}

// WriteWAV writes mono unsigned 8-bit samples as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []uint8, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		pcm.Data[i] = (int(s) - 128) << 8
	}

	if err := enc.Write(pcm); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finalise %s: %w", path, err)
	}
	return f.Close()
}
