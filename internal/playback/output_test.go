package playback

import (
	"testing"
)

func TestMixer_ClockAdvancesWithRenderedFrames(t *testing.T) {
	m := newMixer(1000)
	buf := make([][2]float64, 250)

	if m.Now() != 0 {
		t.Errorf("Expected clock at 0, got %f", m.Now())
	}
	n, ok := m.Stream(buf)
	if n != 250 || !ok {
		t.Fatalf("Expected 250 frames, got %d (%v)", n, ok)
	}
	if m.Now() != 0.25 {
		t.Errorf("Expected clock at 0.25, got %f", m.Now())
	}
}

func TestMixer_PlaysSourceAtScheduledFrame(t *testing.T) {
	m := newMixer(1000)
	if _, err := m.Schedule([]float32{0.5, 0.5}, 0.003); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	buf := make([][2]float64, 5)
	m.Stream(buf)

	for i, frame := range buf {
		want := 0.0
		if i == 3 || i == 4 {
			want = 0.5
		}
		if frame[0] != want || frame[1] != want {
			t.Errorf("Frame %d: expected %f, got %v", i, want, frame)
		}
	}
}

func TestMixer_SourceSpansBuffers(t *testing.T) {
	m := newMixer(1000)
	m.Schedule([]float32{0.1, 0.2, 0.3, 0.4}, 0.002)

	first := make([][2]float64, 3)
	m.Stream(first)
	second := make([][2]float64, 3)
	m.Stream(second)

	if first[2][0] != float64(float32(0.1)) {
		t.Errorf("Expected 0.1 at end of first buffer, got %f", first[2][0])
	}
	if second[2][0] != float64(float32(0.4)) {
		t.Errorf("Expected 0.4 in second buffer, got %f", second[2][0])
	}
	if len(m.sources) != 0 {
		t.Errorf("Expected finished source to be released, got %d", len(m.sources))
	}
}

func TestMixer_StoppedSourceIsSilent(t *testing.T) {
	m := newMixer(1000)
	src, _ := m.Schedule([]float32{1, 1, 1}, 0)
	src.Stop()

	buf := make([][2]float64, 3)
	m.Stream(buf)
	for i, frame := range buf {
		if frame[0] != 0 {
			t.Errorf("Frame %d: expected silence, got %v", i, frame)
		}
	}
}

func TestMixer_CloseEndsStream(t *testing.T) {
	m := newMixer(1000)
	m.Schedule([]float32{1, 1, 1}, 0)
	m.Close()

	n, ok := m.Stream(make([][2]float64, 3))
	if n != 0 || ok {
		t.Errorf("Expected closed mixer to end the stream, got %d (%v)", n, ok)
	}
}
