package file

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/norasector/turbine-input/pkg/sdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestMakeFromArgs(t *testing.T) {
	path := writeFile(t, "capture.cs8", []byte{1, 2, 3, 4})

	found, err := sdr.Enumerate(sdr.ParseKwargs("driver=file,file=" + path))
	require.NoError(t, err)
	require.Len(t, found, 1)

	dev, err := sdr.Make("driver=file,file=" + path)
	require.NoError(t, err)
	format, scale := dev.GetNativeStreamFormat(sdr.RX, 0)
	assert.Equal(t, sdr.FormatCS8, format)
	assert.Equal(t, 128.0, scale)

	_, err = sdr.Make("driver=file,file=" + path + ",format=CS12")
	assert.Error(t, err)
}

func TestStreamReadsWholeFile(t *testing.T) {
	path := writeFile(t, "capture.cu8", []byte{1, 2, 3, 4, 5, 6})
	dev, err := Open(path, sdr.FormatCU8, false)
	require.NoError(t, err)
	require.NoError(t, dev.SetSampleRate(sdr.RX, 0, 1e9))

	s, err := dev.SetupStream(sdr.RX, sdr.FormatCU8, []int{0}, sdr.Kwargs{})
	require.NoError(t, err)
	require.NoError(t, s.Activate(0, 0, 0))
	defer s.Close()

	buf := make([]byte, 4)
	n, _, _, err := s.Read(buf, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	n, _, _, err = s.Read(buf, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{5, 6}, buf[:2])

	_, _, _, err = s.Read(buf, 2, time.Millisecond)
	assert.Equal(t, sdr.ErrStreamError, err)
}

func TestStreamRepeat(t *testing.T) {
	path := writeFile(t, "capture.cs8", []byte{7, 8})
	dev, err := Open(path, sdr.FormatCS8, false)
	require.NoError(t, err)
	require.NoError(t, dev.WriteSetting("repeat", "true"))
	assert.Equal(t, "true", dev.ReadSetting("repeat"))
	require.NoError(t, dev.SetSampleRate(sdr.RX, 0, 1e9))

	s, err := dev.SetupStream(sdr.RX, sdr.FormatCS8, []int{0}, sdr.Kwargs{})
	require.NoError(t, err)
	require.NoError(t, s.Activate(0, 0, 0))
	defer s.Close()

	buf := make([]byte, 2)
	for i := 0; i < 3; i++ {
		n, _, _, err := s.Read(buf, 1, time.Second)
		require.NoError(t, err)
		if n == 0 {
			// rewound
			continue
		}
		assert.Equal(t, []byte{7, 8}, buf)
	}
}

func TestWAVPlayback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           []int{100, -100, 2000, -2000},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	dev, err := Open(path, sdr.FormatCS16, false)
	require.NoError(t, err)
	assert.Error(t, dev.SetSampleRate(sdr.RX, 0, 96000))
	require.NoError(t, dev.SetSampleRate(sdr.RX, 0, 48000))

	s, err := dev.SetupStream(sdr.RX, sdr.FormatCS16, []int{0}, sdr.Kwargs{})
	require.NoError(t, err)
	require.NoError(t, s.Activate(0, 0, 0))
	defer s.Close()

	buf := make([]byte, 8)
	n, _, _, err := s.Read(buf, 2, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, int16(100), int16(binary.LittleEndian.Uint16(buf[0:])))
	assert.Equal(t, int16(-2000), int16(binary.LittleEndian.Uint16(buf[6:])))
}
