package audio

import (
	"bytes"
	"testing"
)

func TestNewTransform_Validation(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"mono 24k", Format{24000, 1}, false},
		{"stereo 24k", Format{24000, 2}, false},
		{"stereo 48k", Format{48000, 2}, false},
		{"unsupported rate", Format{44100, 1}, true},
		{"unsupported rate 16k", Format{16000, 1}, true},
		{"zero channels", Format{24000, 0}, true},
		{"too many channels", Format{24000, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransform(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTransform(%+v) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
		})
	}
}

func TestTransform_MonoUpsampleDoubles(t *testing.T) {
	tr, err := NewTransform(Format{SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}

	// Two mono samples: 0x0102 and 0x0304.
	in := Int16ToPCMBytes([]int16{0x0102, 0x0304})
	out := tr.Process(in)

	if len(out) != 16 {
		t.Fatalf("expected 16 output bytes, got %d", len(out))
	}

	samples := PCMBytesToInt16(out)
	// Each input sample becomes two stereo frames with L==R.
	want := []int16{0x0102, 0x0102, 0x0102, 0x0102, 0x0304, 0x0304, 0x0304, 0x0304}
	for i, s := range want {
		if samples[i] != s {
			t.Errorf("sample %d: expected %#x, got %#x", i, s, samples[i])
		}
	}
	if tr.Pending() != 0 {
		t.Errorf("expected no carry, got %d bytes", tr.Pending())
	}
}

func TestTransform_StereoPassthroughAt48k(t *testing.T) {
	tr, err := NewTransform(Format{SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}

	in := Int16ToPCMBytes([]int16{100, -100, 200, -200})
	out := tr.Process(in)

	if !bytes.Equal(out, in) {
		t.Errorf("expected identity transform at 48k stereo, got %v", out)
	}
}

func TestTransform_CarryAcrossChunks(t *testing.T) {
	tr, err := NewTransform(Format{SampleRate: 24000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}

	// One stereo frame split 3+1 across two chunks.
	frame := Int16ToPCMBytes([]int16{1000, -1000})
	out := tr.Process(frame[:3])
	if len(out) != 0 {
		t.Fatalf("expected no output from partial frame, got %d bytes", len(out))
	}
	if tr.Pending() != 3 {
		t.Fatalf("expected 3 carried bytes, got %d", tr.Pending())
	}

	out = tr.Process(frame[3:])
	samples := PCMBytesToInt16(out)
	want := []int16{1000, -1000, 1000, -1000}
	if len(samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(samples))
	}
	for i, s := range want {
		if samples[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, samples[i])
		}
	}
}

func TestTransform_SplitInvariance(t *testing.T) {
	input := make([]byte, 0, 64)
	for i := 0; i < 32; i++ {
		input = append(input, byte(i), byte(i*3))
	}

	whole, err := NewTransform(Format{SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	wholeOut := whole.Process(input)

	// Every possible two-way split must produce identical output.
	for split := 0; split <= len(input); split++ {
		tr, err := NewTransform(Format{SampleRate: 24000, Channels: 1})
		if err != nil {
			t.Fatal(err)
		}
		var out []byte
		out = append(out, tr.Process(input[:split])...)
		out = append(out, tr.Process(input[split:])...)
		if !bytes.Equal(out, wholeOut) {
			t.Errorf("split at %d: output differs from whole-chunk processing", split)
		}
	}
}

func TestTransform_TotalLength(t *testing.T) {
	tr, err := NewTransform(Format{SampleRate: 24000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}

	// 7 chunks of 13 bytes: 91 bytes, 22 whole stereo frames + 3 carry.
	total := 0
	for i := 0; i < 7; i++ {
		chunk := make([]byte, 13)
		total += len(tr.Process(chunk))
	}

	const frames = 91 / 4
	if want := frames * 2 * 4; total != want {
		t.Errorf("expected %d output bytes, got %d", want, total)
	}
	if tr.Pending() != 91%4 {
		t.Errorf("expected %d carried bytes, got %d", 91%4, tr.Pending())
	}
	if dropped := tr.Flush(); dropped != 91%4 {
		t.Errorf("expected flush to drop %d bytes, dropped %d", 91%4, dropped)
	}
	if tr.Pending() != 0 {
		t.Error("expected empty carry after flush")
	}
}

func TestTransform_EmptyChunk(t *testing.T) {
	tr, err := NewTransform(Format{SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if out := tr.Process(nil); len(out) != 0 {
		t.Errorf("expected no output for empty chunk, got %d bytes", len(out))
	}
}

func TestTransform_OutputSize(t *testing.T) {
	tr, err := NewTransform(Format{SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	// 10 mono samples -> 20 stereo frames -> 80 bytes.
	if got := tr.OutputSize(20); got != 80 {
		t.Errorf("expected 80, got %d", got)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	got := PCMBytesToInt16(Int16ToPCMBytes(samples))
	for i, s := range samples {
		if got[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, got[i])
		}
	}
}

func TestFloat32Conversion_Clamps(t *testing.T) {
	out := Float32ToInt16([]float32{1.5, -1.5, 0})
	if out[0] != 32767 {
		t.Errorf("expected clamp to 32767, got %d", out[0])
	}
	if out[1] != -32767 {
		t.Errorf("expected clamp to -32767, got %d", out[1])
	}
	if out[2] != 0 {
		t.Errorf("expected 0, got %d", out[2])
	}
}
