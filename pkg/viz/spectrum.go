// Package viz serves a live spectrum of the captured IQ stream along with
// device and capture status over HTTP.
package viz

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/window"
	"github.com/norasector/turbine-input/pkg/util"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// powerAvg is the weight of the newest FFT in the running power average.
const powerAvg = 0.10

var (
	backgroundColor = color.RGBA{R: 0x10, G: 0x14, B: 0x1c, A: 0xff}
	axisColor       = color.RGBA{R: 0xb0, G: 0xb8, B: 0xc4, A: 0xff}
	gridColor       = color.RGBA{R: 0x30, G: 0x38, B: 0x44, A: 0xff}
	traceColor      = color.RGBA{R: 0x3c, G: 0xdc, B: 0x78, A: 0xff}
)

// Spectrum keeps the most recent FFT-sized window of samples and renders
// their averaged power spectrum.
type Spectrum struct {
	mu           sync.Mutex
	name         string
	size         int
	sampleRate   int
	centerFreq   int
	buf          []complex64
	win          []float64
	fft          *fourier.CmplxFFT
	averagePower []float64
}

func NewSpectrum(name string, size, sampleRate, centerFreq int) *Spectrum {
	return &Spectrum{
		name:         name,
		size:         size,
		sampleRate:   sampleRate,
		centerFreq:   centerFreq,
		buf:          make([]complex64, size),
		win:          window.Blackman(size),
		fft:          fourier.NewCmplxFFT(size),
		averagePower: make([]float64, size),
	}
}

func (s *Spectrum) Name() string {
	return s.name
}

// Append slides samples into the window, keeping the newest.
func (s *Spectrum) Append(samples []complex64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(samples) >= s.size {
		copy(s.buf, samples[len(samples)-s.size:])
		return
	}
	copy(s.buf, s.buf[len(samples):])
	copy(s.buf[s.size-len(samples):], samples)
}

// Power computes the FFT of the current window, folds it into the running
// average and returns absolute frequency against power in dB, lowest
// frequency first.
func (s *Spectrum) Power() plotter.XYs {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Blackman coherent gain is 0.42.
	norm := 0.42 * float64(s.size)
	data := make([]complex128, s.size)
	for i, c := range s.buf {
		data[i] = complex128(c) * complex(s.win[i]/norm, 0)
	}
	coeffs := s.fft.Coefficients(nil, data)

	ret := make(plotter.XYs, s.size)
	for i := 0; i < s.size; i++ {
		idx := s.fft.ShiftIdx(i)
		mag := cmplx.Abs(coeffs[idx])
		s.averagePower[i] = (1.0-powerAvg)*s.averagePower[i] + powerAvg*mag

		db := -200.0
		if s.averagePower[i] > 0 {
			db = 20 * math.Log10(s.averagePower[i])
		}
		ret[i] = plotter.XY{
			X: float64(s.centerFreq) + s.fft.Freq(idx)*float64(s.sampleRate),
			Y: db,
		}
	}
	return ret
}

// Image renders the spectrum as a PNG: a single power trace over a dim
// grid, power clipped to [-100, 0] dB.
func (s *Spectrum) Image() ([]byte, error) {
	points := s.Power()

	p := plot.New()
	p.BackgroundColor = backgroundColor
	p.Title.Text = fmt.Sprintf("%s @ %s", s.name, util.MHzToString(s.centerFreq))
	p.Title.TextStyle.Color = axisColor
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Color = axisColor
		axis.Label.TextStyle.Color = axisColor
		axis.Tick.Color = axisColor
		axis.Tick.Label.Color = axisColor
	}
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Power (dB)"
	p.Y.Min = -100
	p.Y.Max = 0

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)

	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, err
	}
	line.Color = traceColor
	p.Add(line)

	w, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if _, err := w.WriteTo(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
