package file

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavSource exposes the PCM data of a stereo 16-bit WAV file as CS16 bytes,
// I on the left channel and Q on the right.
type wavSource struct {
	f          *os.File
	dec        *wav.Decoder
	buf        *audio.IntBuffer
	sampleRate int
}

func openWAV(path string) (*wavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("file: %s is not a WAV file: %w", path, err)
	}
	if dec.NumChans != 2 || dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("file: %s must be 2 channel 16 bit PCM, got %d channels %d bits",
			path, dec.NumChans, dec.BitDepth)
	}
	return &wavSource{
		f:          f,
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *wavSource) Read(p []byte) (int, error) {
	ints := (len(p) / 4) * 2
	if ints == 0 {
		return 0, nil
	}
	if cap(w.buf.Data) < ints {
		w.buf.Data = make([]int, ints)
	}
	w.buf.Data = w.buf.Data[:ints]

	n, err := w.dec.PCMBuffer(w.buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(p[2*i:], uint16(int16(w.buf.Data[i])))
	}
	return 2 * n, nil
}

func (w *wavSource) Close() error {
	return w.f.Close()
}
