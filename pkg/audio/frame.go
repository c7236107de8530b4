// Package audio defines the PCM frame type exchanged between microphones,
// speakers, recognition engines and synthesizers, plus the device contracts.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// FrameDuration is the nominal length of a frame produced by this package.
const FrameDuration = 10 * time.Millisecond

// Frame is a chunk of 16-bit little-endian PCM.
// Len(Data) == SamplesPerChannel * NumChannels * 2.
type Frame struct {
	Data              []byte
	SampleRate        int
	SamplesPerChannel int
	NumChannels       int
	Timestamp         time.Duration // offset from the start of the stream
}

// NewFrame validates that data holds whole samples for every channel.
func NewFrame(data []byte, sampleRate, numChannels int, timestamp time.Duration) (*Frame, error) {
	if sampleRate <= 0 || numChannels <= 0 {
		return nil, fmt.Errorf("invalid frame format: %dHz %d channels", sampleRate, numChannels)
	}
	if len(data)%(numChannels*2) != 0 {
		return nil, fmt.Errorf("frame data length %d is not a multiple of %d", len(data), numChannels*2)
	}
	return &Frame{
		Data:              data,
		SampleRate:        sampleRate,
		SamplesPerChannel: len(data) / (numChannels * 2),
		NumChannels:       numChannels,
		Timestamp:         timestamp,
	}, nil
}

// Clone creates a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	c := *f
	c.Data = data
	return &c
}

// Duration returns the playback length of the frame.
func (f *Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(f.SamplesPerChannel) * time.Second / time.Duration(f.SampleRate)
}

// RMS returns the root mean square level of the frame in the 0..1 range.
func (f *Frame) RMS() float64 {
	n := len(f.Data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(f.Data[i*2:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Split cuts raw PCM into 10 ms frames. A trailing partial frame is zero padded.
func Split(pcm []byte, sampleRate, numChannels int) []Frame {
	samples := sampleRate / 100
	if samples == 0 {
		samples = 1
	}
	size := samples * numChannels * 2
	var frames []Frame
	for i, off := 0, 0; off < len(pcm); i, off = i+1, off+size {
		data := make([]byte, size)
		copy(data, pcm[off:min(off+size, len(pcm))])
		frames = append(frames, Frame{
			Data:              data,
			SampleRate:        sampleRate,
			SamplesPerChannel: samples,
			NumChannels:       numChannels,
			Timestamp:         time.Duration(i) * FrameDuration,
		})
	}
	return frames
}

// Join concatenates the PCM payload of frames.
func Join(frames []Frame) []byte {
	var n int
	for _, f := range frames {
		n += len(f.Data)
	}
	out := make([]byte, 0, n)
	for _, f := range frames {
		out = append(out, f.Data...)
	}
	return out
}

// Speed returns a copy of f played back rate times faster, using nearest
// sample selection. Pitch shifts with the rate.
func Speed(f Frame, rate float64) Frame {
	if rate <= 0 || rate == 1 || f.NumChannels == 0 {
		return f
	}
	stride := f.NumChannels * 2
	in := len(f.Data) / stride
	out := int(float64(in) / rate)
	data := make([]byte, out*stride)
	for i := 0; i < out; i++ {
		src := int(float64(i) * rate)
		if src >= in {
			src = in - 1
		}
		copy(data[i*stride:(i+1)*stride], f.Data[src*stride:(src+1)*stride])
	}
	f.Data = data
	f.SamplesPerChannel = out
	return f
}

// Stream sends frames on a channel that closes after the last one.
func Stream(frames []Frame) <-chan Frame {
	ch := make(chan Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return ch
}
