package mel

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/mewkiz/flac"

	"github.com/neurlang/gomelgan/tensor"
)

// wavRescale undoes the beep decoder's full-range divisor for signed PCM,
// which maps n-bit samples to [-0.5, 0.5).
func wavRescale(precision int) float64 {
	switch precision {
	case 2:
		return float64(1<<16-1) / (1 << 15)
	case 3:
		return float64(1<<24-1) / (1 << 23)
	}
	return 1
}

func loadwav(name string) (out []float64, sampleRate int, err error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	stream, format, err := wav.Decode(file)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	scale := wavRescale(format.Precision)
	var samples = make([][2]float64, 512)
	for {
		n, ok := stream.Stream(samples)
		for i := 0; i < n; i++ {
			out = append(out, min(max(samples[i][0]*scale, -1), 1))
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, 0, err
	}
	return out, int(format.SampleRate), nil
}

func loadflac(name string) (out []float64, sampleRate int, err error) {
	stream, err := flac.Open(name)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	scale := float64(int64(1) << (stream.Info.BitsPerSample - 1))
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		for _, s := range frame.Subframes[0].Samples {
			out = append(out, float64(s)/scale)
		}
	}
	return out, int(stream.Info.SampleRate), nil
}

func dumpwav(name string, vec []float64, sampleRate int) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}

	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 1, Precision: 2}
	pos := 0
	streamer := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= len(vec) {
			return 0, false
		}
		for n = 0; n < len(samples) && pos < len(vec); n++ {
			v := min(max(vec[pos], -1), 1)
			samples[n] = [2]float64{v, v}
			pos++
		}
		return n, true
	})

	if err := wav.Encode(f, streamer, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// dumpimage writes one spectrogram item as a grayscale PNG, min-max normalized.
func dumpimage(name string, spec *tensor.Tensor, item int, reverse bool) error {
	if err := checkItem(spec, item); err != nil {
		return err
	}
	mels, frames := spec.Channels, spec.Length
	lo, hi := math.Inf(1), math.Inf(-1)
	for c := 0; c < mels; c++ {
		for _, v := range spec.Row(item, c) {
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	img := image.NewGray(image.Rect(0, 0, frames, mels))
	for y := 0; y < mels; y++ {
		row := spec.Row(item, y)
		for x := 0; x < frames; x++ {
			col := color.Gray{Y: uint8(255 * (row[x] - lo) / span)}
			if reverse {
				img.SetGray(x, mels-y-1, col)
			} else {
				img.SetGray(x, y, col)
			}
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var float16Magic = [4]byte{'M', 'F', '1', '6'}

func checkItem(spec *tensor.Tensor, item int) error {
	if item < 0 || item >= spec.Batch {
		return fmt.Errorf("mel: item %d out of range for batch of %d", item, spec.Batch)
	}
	return nil
}

func dumpfloat16(w io.Writer, spec *tensor.Tensor, item int) error {
	if err := checkItem(spec, item); err != nil {
		return err
	}
	size := spec.Channels * spec.Length
	view, err := tensor.FromSlice(1, spec.Channels, spec.Length, spec.Data[item*size:(item+1)*size])
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	header := struct {
		Magic    [4]byte
		Channels uint32
		Frames   uint32
	}{float16Magic, uint32(view.Channels), uint32(view.Length)}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, view.Float16Bits()); err != nil {
		return err
	}
	return bw.Flush()
}

func loadfloat16(r io.Reader) (*tensor.Tensor, error) {
	br := bufio.NewReader(r)
	var header struct {
		Magic    [4]byte
		Channels uint32
		Frames   uint32
	}
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != float16Magic {
		return nil, fmt.Errorf("mel: not a float16 spectrogram (magic %q)", header.Magic[:])
	}
	bits := make([]uint16, int(header.Channels)*int(header.Frames))
	if err := binary.Read(br, binary.LittleEndian, bits); err != nil {
		return nil, err
	}
	return tensor.FromFloat16Bits(1, int(header.Channels), int(header.Frames), bits)
}

// LoadWav loads the first channel of a wav file and its sample rate.
func LoadWav(inputFile string) ([]float64, int, error) {
	return checkLoaded(loadwav(inputFile))
}

// LoadFlac loads the first channel of a flac file and its sample rate.
func LoadFlac(inputFile string) ([]float64, int, error) {
	return checkLoaded(loadflac(inputFile))
}

// LoadAudio picks LoadFlac or LoadWav by file extension.
func LoadAudio(inputFile string) ([]float64, int, error) {
	if strings.EqualFold(filepath.Ext(inputFile), ".flac") {
		return LoadFlac(inputFile)
	}
	return LoadWav(inputFile)
}

func checkLoaded(buf []float64, sr int, err error) ([]float64, int, error) {
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrFileNotLoaded, err)
	}
	if len(buf) == 0 || sr == 0 {
		return nil, 0, ErrFileNotLoaded
	}
	return buf, sr, nil
}

// SaveWav saves a mono 16-bit wav file from a sample vector clipped to [-1, 1].
func SaveWav(outputFile string, vec []float64, sr int) error {
	return dumpwav(outputFile, vec, sr)
}

// SavePNG saves batch item of spec as an image, low mel bands at the bottom
// when YReverse is set.
func (m *Mel) SavePNG(outputFile string, spec *tensor.Tensor, item int) error {
	return dumpimage(outputFile, spec, item, m.YReverse)
}

// SaveFloat16 stores batch item of spec as half precision values.
// An existing file is left untouched when item is out of range.
func SaveFloat16(outputFile string, spec *tensor.Tensor, item int) error {
	if err := checkItem(spec, item); err != nil {
		return err
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	if err := dumpfloat16(f, spec, item); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFloat16 reads a spectrogram written by SaveFloat16 as [1, mels, frames].
func LoadFloat16(inputFile string) (*tensor.Tensor, error) {
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loadfloat16(f)
}
