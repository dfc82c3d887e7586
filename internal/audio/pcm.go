package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// BitDepth is the only sample width handled by this package.
const BitDepth = 16

// Format describes signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return BitDepth / 8 * f.Channels
}

// Duration returns how long pcm takes to play.
func (f Format) Duration(pcm []byte) time.Duration {
	if f.SampleRate == 0 || f.BytesPerFrame() == 0 {
		return 0
	}
	frames := len(pcm) / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Silence returns d worth of silent PCM.
func (f Format) Silence(d time.Duration) []byte {
	frames := int(d.Seconds() * float64(f.SampleRate))
	return make([]byte, frames*f.BytesPerFrame())
}

// Validate checks that pcm is frame aligned.
func (f Format) Validate(pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("empty PCM data")
	}
	if n := f.BytesPerFrame(); n == 0 || len(pcm)%n != 0 {
		return fmt.Errorf("PCM data length %d is not aligned to %d-byte frames", len(pcm), n)
	}
	return nil
}

// Resample stretches pcm by linear interpolation so that it plays ratio
// times faster: the output holds len/ratio frames. Played back at the same
// sample rate, a ratio above 1 raises pitch and tempo together.
func Resample(pcm []byte, channels int, ratio float64) []byte {
	if ratio <= 0 || channels <= 0 || ratio == 1 {
		return pcm
	}

	frameSize := channels * 2
	inFrames := len(pcm) / frameSize
	if inFrames == 0 {
		return pcm
	}

	outFrames := int(math.Floor(float64(inFrames) / ratio))
	out := make([]byte, outFrames*frameSize)

	sample := func(frame, ch int) float64 {
		if frame >= inFrames {
			frame = inFrames - 1
		}
		off := frame*frameSize + ch*2
		return float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
	}

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		base := int(pos)
		frac := pos - float64(base)
		for ch := 0; ch < channels; ch++ {
			a := sample(base, ch)
			b := sample(base+1, ch)
			v := math.Round(a + (b-a)*frac)
			off := i*frameSize + ch*2
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(clamp16(v))))
		}
	}

	return out
}

// Convert resamples pcm from one format's sample rate to another's and
// shifts pitch by the given factor on the way.
func Convert(pcm []byte, from, to Format, pitch float64) []byte {
	if pitch <= 0 {
		pitch = 1
	}
	ratio := pitch * float64(from.SampleRate) / float64(to.SampleRate)
	return Resample(pcm, from.Channels, ratio)
}

func clamp16(v float64) float64 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return v
}
