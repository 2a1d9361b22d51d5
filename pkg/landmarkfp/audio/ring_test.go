package audio

import (
	"reflect"
	"testing"
)

func TestRingBufferPushDrain(t *testing.T) {
	r := NewRingBuffer(8)
	r.Push([]float64{1, 2, 3})
	r.Push([]float64{4, 5})

	if r.Len() != 5 {
		t.Fatalf("expected Len 5, got %d", r.Len())
	}

	got := r.Drain(3)
	if !reflect.DeepEqual(got, []float64{1, 2, 3}) {
		t.Fatalf("unexpected drain: %v", got)
	}
	if r.Len() != 2 {
		t.Fatalf("expected Len 2 after drain, got %d", r.Len())
	}
}

func TestRingBufferPeekDoesNotConsume(t *testing.T) {
	r := NewRingBuffer(4)
	r.Push([]float64{9, 8, 7})

	peeked := r.Peek(2)
	if !reflect.DeepEqual(peeked, []float64{9, 8}) {
		t.Fatalf("unexpected peek: %v", peeked)
	}
	if r.Len() != 3 {
		t.Fatalf("expected Peek to not consume, Len still 3, got %d", r.Len())
	}
}
