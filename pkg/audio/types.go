// ABOUTME: Audio type definitions
// ABOUTME: Defines mono float buffers, decibel helpers and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Buffer is mono PCM audio in the range [-1, 1]
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// NewBuffer allocates a silent buffer of n samples
func NewBuffer(n, sampleRate int) Buffer {
	return Buffer{
		Samples:    make([]float32, n),
		SampleRate: sampleRate,
	}
}

// Len returns the number of samples
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Seconds returns the buffer duration in seconds
func (b Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Duration returns the buffer duration
func (b Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Slice returns the samples between start and start+duration (seconds), clamped to the buffer
func (b Buffer) Slice(start, duration float64) Buffer {
	from := int(math.Round(start * float64(b.SampleRate)))
	to := from + int(math.Round(duration*float64(b.SampleRate)))
	if from < 0 {
		from = 0
	}
	if to > len(b.Samples) {
		to = len(b.Samples)
	}
	if from >= to {
		return Buffer{SampleRate: b.SampleRate}
	}
	return Buffer{Samples: b.Samples[from:to], SampleRate: b.SampleRate}
}

// LinearToDecibel converts an amplitude ratio to dB (20·log10)
func LinearToDecibel(v float64) float64 {
	return 20 * math.Log10(v)
}

// PowerToDecibel converts a power ratio to dB (10·log10)
func PowerToDecibel(p float64) float64 {
	return 10 * math.Log10(p)
}

// DecibelToLinear converts dB to an amplitude ratio
func DecibelToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// SampleToInt16 converts a float sample to int16 with clipping
func SampleToInt16(sample float32) int16 {
	if sample > 1 {
		sample = 1
	} else if sample < -1 {
		sample = -1
	}
	return int16(sample * math.MaxInt16)
}

// SampleFromInt16 converts an int16 sample to float
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleFromInt converts a signed integer sample of the given bit depth to float
func SampleFromInt(sample int32, bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return float32(sample) / 128
	case 16:
		return float32(sample) / 32768
	case 24:
		return float32(sample) / (Max24Bit + 1)
	default:
		return float32(float64(sample) / float64(uint64(1)<<(bitDepth-1)))
	}
}

// SampleTo24Bit converts an int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// MixDown averages interleaved frames into a mono sample slice
func MixDown(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
