package audio

import "fmt"

const (
	// OutputSampleRate and OutputChannels describe the fixed format the
	// playback sink consumes: 48 kHz stereo s16le.
	OutputSampleRate = 48000
	OutputChannels   = 2

	outputFrameBytes = OutputChannels * 2
)

var supportedRates = []int{24000, 48000}

// Format describes input-side PCM: 16-bit signed little-endian samples
// at one of the supported rates, mono or stereo.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) validate() error {
	ok := false
	for _, r := range supportedRates {
		if f.SampleRate == r {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("unsupported sample rate %d (supported: %v)", f.SampleRate, supportedRates)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("unsupported channel count %d", f.Channels)
	}
	return nil
}

// Transform converts arbitrarily chunked input PCM into the sink format.
// Upsampling duplicates frames (nearest neighbor), it does not
// interpolate. Input chunks need not be frame-aligned: up to
// frameBytes-1 trailing bytes are carried into the next call.
type Transform struct {
	format     Format
	frameBytes int
	factor     int
	carry      []byte
}

func NewTransform(f Format) (*Transform, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if OutputSampleRate%f.SampleRate != 0 {
		return nil, fmt.Errorf("sample rate %d is not an integer divisor of %d", f.SampleRate, OutputSampleRate)
	}
	return &Transform{
		format:     f,
		frameBytes: f.Channels * 2,
		factor:     OutputSampleRate / f.SampleRate,
	}, nil
}

// Process consumes one input chunk and returns zero or more bytes of
// output-format PCM. A chunk that, together with the carry, holds less
// than one whole frame produces no output.
func (t *Transform) Process(chunk []byte) []byte {
	data := chunk
	if len(t.carry) > 0 {
		data = make([]byte, 0, len(t.carry)+len(chunk))
		data = append(data, t.carry...)
		data = append(data, chunk...)
		t.carry = nil
	}

	usable := len(data) - len(data)%t.frameBytes
	if usable < len(data) {
		t.carry = append([]byte(nil), data[usable:]...)
	}
	if usable == 0 {
		return nil
	}

	frames := usable / t.frameBytes
	out := make([]byte, 0, frames*t.factor*outputFrameBytes)
	for i := 0; i < usable; i += t.frameBytes {
		l0, l1 := data[i], data[i+1]
		r0, r1 := l0, l1
		if t.format.Channels == 2 {
			r0, r1 = data[i+2], data[i+3]
		}
		for rep := 0; rep < t.factor; rep++ {
			out = append(out, l0, l1, r0, r1)
		}
	}
	return out
}

// Flush discards any buffered partial frame and reports how many bytes
// were dropped. A trailing partial frame at end of stream is never
// emitted.
func (t *Transform) Flush() int {
	n := len(t.carry)
	t.carry = nil
	return n
}

// Pending reports the number of carried bytes awaiting frame completion.
func (t *Transform) Pending() int {
	return len(t.carry)
}

// OutputSize reports the output byte count produced by n aligned input
// bytes, used to size downstream buffers.
func (t *Transform) OutputSize(n int) int {
	return n / t.frameBytes * t.factor * outputFrameBytes
}
