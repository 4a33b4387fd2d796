package miniaudio

import "testing"

func TestPlaybackBufferReleasesMarksOncePlayed(t *testing.T) {
	var buffer playbackBuffer
	var reached []string
	record := func(name string) { reached = append(reached, name) }

	buffer.push([]byte{1, 2, 3, 4})
	buffer.mark("first", record)
	buffer.push([]byte{5, 6})
	buffer.mark("second", record)

	out := make([]byte, 3)
	if passed := buffer.read(out); len(passed) != 0 {
		t.Fatalf("expected no marks after 3 bytes, got %d", len(passed))
	}

	out = make([]byte, 2)
	for _, mark := range buffer.read(out) {
		mark.callback(mark.name)
	}
	if len(reached) != 1 || reached[0] != "first" {
		t.Fatalf("expected first mark only, got %v", reached)
	}

	out = make([]byte, 4)
	for _, mark := range buffer.read(out) {
		mark.callback(mark.name)
	}
	if len(reached) != 2 || reached[1] != "second" {
		t.Fatalf("expected second mark, got %v", reached)
	}
	if out[0] != 6 || out[1] != 0 || out[3] != 0 {
		t.Fatalf("expected remaining audio padded with silence, got %v", out)
	}
}

func TestPlaybackBufferMarkOnEmptyQueueFiresOnNextRead(t *testing.T) {
	var buffer playbackBuffer
	buffer.mark("end", func(string) {})

	if passed := buffer.read(make([]byte, 8)); len(passed) != 1 {
		t.Fatalf("expected mark on empty queue to pass immediately, got %d", len(passed))
	}
}

func TestPlaybackBufferClearDropsMarks(t *testing.T) {
	var buffer playbackBuffer
	buffer.push([]byte{1, 2})
	buffer.mark("end", func(string) { t.Fatalf("expected cleared mark not to fire") })
	buffer.clear()

	out := []byte{9, 9}
	if passed := buffer.read(out); len(passed) != 0 {
		t.Fatalf("expected no marks after clear, got %d", len(passed))
	}
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("expected silence after clear, got %v", out)
	}
}
