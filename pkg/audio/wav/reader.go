// Package wav reads and writes 16-bit PCM WAV data.
package wav

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/chriscow/memora/pkg/audio"
)

// Header represents a WAV file header.
type Header struct {
	ChunkSize     uint32
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// ReadFile decodes a WAV file into 10ms frames.
func ReadFile(filename string) (Header, []audio.Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		return Header{}, nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()
	return Decode(bufio.NewReader(file))
}

// Decode reads a WAV stream into 10ms frames. A data chunk size of zero or
// 0xFFFFFFFF, as written by tools streaming to stdout, means "until EOF".
func Decode(r io.Reader) (Header, []audio.Frame, error) {
	var h Header
	if err := readHeader(r, &h); err != nil {
		return h, nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	var data []byte
	var err error
	if h.DataSize == 0 || h.DataSize == 0xFFFFFFFF {
		data, err = io.ReadAll(r)
	} else {
		data = make([]byte, h.DataSize)
		var n int
		n, err = io.ReadFull(r, data)
		if err == io.ErrUnexpectedEOF {
			data, err = data[:n], nil
		}
	}
	if err != nil {
		return h, nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	// Drop a dangling odd byte.
	data = data[:len(data)-len(data)%(int(h.NumChannels)*2)]
	return h, audio.Split(data, int(h.SampleRate), int(h.NumChannels)), nil
}

func readHeader(r io.Reader, h *Header) error {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return fmt.Errorf("not a valid RIFF file")
	}
	if string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("not a valid WAVE file")
	}
	h.ChunkSize = binary.LittleEndian.Uint32(riff[4:8])

	var sawFmt bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			var fmtData [16]byte
			if _, err := io.ReadFull(r, fmtData[:]); err != nil {
				return fmt.Errorf("failed to read fmt data: %w", err)
			}
			if format := binary.LittleEndian.Uint16(fmtData[0:2]); format != 1 {
				return fmt.Errorf("only PCM format is supported, got format %d", format)
			}
			h.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
			h.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
			h.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])
			if err := skip(r, int64(size-16)); err != nil {
				return err
			}
			sawFmt = true
		case "data":
			if !sawFmt {
				return fmt.Errorf("data chunk before fmt chunk")
			}
			h.DataSize = size
			if h.BitsPerSample != 16 {
				return fmt.Errorf("only 16-bit samples are supported, got %d-bit", h.BitsPerSample)
			}
			if h.NumChannels != 1 && h.NumChannels != 2 {
				return fmt.Errorf("only mono and stereo are supported, got %d channels", h.NumChannels)
			}
			if h.SampleRate == 0 {
				return fmt.Errorf("invalid sample rate 0")
			}
			return nil
		default:
			if err := skip(r, int64(size)); err != nil {
				return err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("failed to skip chunk: %w", err)
	}
	return nil
}
