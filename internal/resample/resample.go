// Package resample implements the linear-interpolation speed/pitch shifter
// used by input and output streams, with a remainder ring carrying
// fractional-interpolation state across block boundaries.
package resample

import "math"

const (
	MinRateShift   = 1.0 / 16.0
	MaxRateShift   = 16.0
	semitoneFactor = 1.0594630943592953 // 2^(1/12)
	bendFactor     = 1.0000846163030 // 2^(1/8192), octave spread over 8192 bend steps

	MaxRemainder = 256
)

// SpeedFromComponents derives the additive speed from octave, semitone step
// and bend, clamped to [MinRateShift, MaxRateShift].
func SpeedFromComponents(octave, semitone int, bend float64) float64 {
	speed := math.Pow(2, float64(octave)) * semitoneSpeed(semitone) * bendSpeed(bend)
	if speed < MinRateShift {
		speed = MinRateShift
	}
	if speed > MaxRateShift {
		speed = MaxRateShift
	}
	return speed
}

func semitoneSpeed(degree int) float64 {
	if degree == 0 {
		return 1
	}
	if degree > 0 {
		octave := degree / 12
		rest := degree - octave*12
		speed := math.Pow(2, float64(octave))
		if rest != 0 {
			speed *= math.Pow(semitoneFactor, float64(rest))
		}
		return speed
	}
	d := -degree
	octave := d / 12
	rest := d - octave*12
	speed := 1.0 / math.Pow(2, float64(octave))
	if rest != 0 {
		speed *= 1.0 / math.Pow(semitoneFactor, float64(rest))
	}
	return speed
}

func bendSpeed(degree float64) float64 {
	if degree == 0 {
		return 1
	}
	if degree > 0 {
		return math.Pow(bendFactor, degree)
	}
	return 1.0 / math.Pow(bendFactor, -degree)
}

// Resampler holds the cross-block state for linear-interpolation resampling:
// the fractional phase, the last frame of history (for continuity across
// blocks), and a remainder ring for frames produced past the caller's
// destination capacity.
type Resampler struct {
	Channels     int
	Speed        float64
	inverseSpeed float64
	threshold    float64 // fractional phase in (0, 1]
	lastFrame    []float32

	remainder      [][]float32
	remainderCount int
}

func New(channels int) *Resampler {
	r := &Resampler{
		Channels:     channels,
		Speed:        1,
		inverseSpeed: 1,
		threshold:    1,
		lastFrame:    make([]float32, channels),
	}
	return r
}

// SetSpeed updates the playback speed, clamping to the allowed range.
func (r *Resampler) SetSpeed(speed float64) {
	if speed < MinRateShift {
		speed = MinRateShift
	}
	if speed > MaxRateShift {
		speed = MaxRateShift
	}
	r.Speed = speed
	r.inverseSpeed = 1.0 / speed
}

// addRemainder stages a frame produced past the destination buffer's
// capacity for delivery on the next Resample call.
func (r *Resampler) addRemainder(frame []float32) {
	if r.remainderCount >= MaxRemainder {
		return
	}
	if len(r.remainder) <= r.remainderCount {
		r.remainder = append(r.remainder, make([]float32, r.Channels))
	}
	copy(r.remainder[r.remainderCount], frame)
	r.remainderCount++
}

func (r *Resampler) popRemainder(dst []float32) bool {
	if r.remainderCount == 0 {
		return false
	}
	copy(dst, r.remainder[0])
	copy(r.remainder, r.remainder[1:r.remainderCount])
	r.remainderCount--
	return true
}

// Resample pulls from src (nSrc frames, Channels wide) and writes up to
// nDst frames into dst (unlimited if nDst <= 0), returning frames written.
// At speed == 1 this degenerates to a copy that still updates lastFrame and
// leaves threshold unchanged. Output frames produced past
// dst's capacity are staged in the remainder ring and delivered first on the
// next call, ahead of any new source.
func (r *Resampler) Resample(src []float32, nSrc int, dst []float32, nDst int) int {
	ch := r.Channels
	unlimited := nDst <= 0
	written := 0
	hasRoom := func() bool { return unlimited || written < nDst }
	emit := func(frame []float32) {
		if hasRoom() {
			if unlimited {
				dst = append(dst, frame...)
			} else {
				copy(dst[written*ch:written*ch+ch], frame)
			}
			written++
		} else {
			r.addRemainder(frame)
		}
	}

	// Deliver anything staged from a previous call before touching new
	// source frames.
	staged := make([]float32, ch)
	for r.remainderCount > 0 && hasRoom() {
		r.popRemainder(staged)
		emit(staged)
	}

	srcPos := 0
	for srcPos < nSrc {
		if !hasRoom() && r.remainderCount >= MaxRemainder {
			break
		}
		cur := src[srcPos*ch : srcPos*ch+ch]

		if r.Speed == 1 {
			emit(cur)
			copy(r.lastFrame, cur)
			srcPos++
			continue
		}

		out := make([]float32, ch)
		for c := 0; c < ch; c++ {
			out[c] = r.lastFrame[c] + float32(r.threshold)*(cur[c]-r.lastFrame[c])
		}
		emit(out)

		r.threshold += r.Speed
		for r.threshold > 1 && srcPos < nSrc {
			copy(r.lastFrame, cur)
			srcPos++
			r.threshold -= 1
			if srcPos < nSrc {
				cur = src[srcPos*ch : srcPos*ch+ch]
			}
		}
		if r.threshold <= 1 && srcPos >= nSrc {
			// ran out of source mid-interval; remember progress toward the
			// next source frame for continuity across blocks.
			break
		}
	}
	return written
}

// scaleFrames simulates the advance loop without producing samples, used to
// reserve buffers deterministically.
func scaleFrames(speed, threshold float64, n int) int {
	if n <= 0 {
		return 0
	}
	if speed == 1 {
		return n
	}
	count := 0
	remaining := float64(n)
	t := threshold
	for remaining > 0 {
		if t > 1 {
			t -= 1
			remaining--
			continue
		}
		count++
		t += speed
		if t <= 1 {
			remaining--
		}
	}
	return count
}

// ScaleToSourceFrames predicts how many source frames are needed to produce
// nDst destination frames at the given speed/threshold.
func (r *Resampler) ScaleToSourceFrames(speed, threshold float64, nDst int) int {
	return scaleFrames(1.0/speed, 1.0/threshold, nDst)
}

// ScaleToDestFrames predicts how many destination frames nSrc source frames
// will produce at the given speed/threshold.
func (r *Resampler) ScaleToDestFrames(speed, threshold float64, nSrc int) int {
	return scaleFrames(speed, threshold, nSrc)
}

func (r *Resampler) Threshold() float64 { return r.threshold }
func (r *Resampler) LastFrame() []float32 {
	out := make([]float32, len(r.lastFrame))
	copy(out, r.lastFrame)
	return out
}
