package audio

import (
	"errors"
	"sync"
	"testing"
)

func TestBufferQueue_FIFOUnderConcurrentPushPop(t *testing.T) {
	const total = 5000
	q := NewBufferQueue(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= total; i++ {
			if err := q.Push(NewFrame([]int16{int16(i)}, 16000, uint64(i))); err != nil {
				t.Errorf("Push() error = %v", err)
				return
			}
		}
	}()

	var got []uint64
	for len(got) < total {
		if len(got)%2 == 0 {
			for _, f := range q.PopAll() {
				got = append(got, f.Sequence())
			}
			continue
		}
		if f, ok := q.PopOne(); ok {
			got = append(got, f.Sequence())
		}
	}
	wg.Wait()

	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("position %d: expected sequence %d, got %d", i, i+1, seq)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestBufferQueue_MultipleProducersKeepPerProducerOrder(t *testing.T) {
	const producers, perProducer = 4, 1000
	q := NewBufferQueue(0)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(NewFrame(nil, 16000, uint64(p*perProducer+i)))
			}
		}(p)
	}

	seen := make(map[uint64]bool)
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		for _, f := range q.PopAll() {
			seq := f.Sequence()
			if seen[seq] {
				t.Fatalf("duplicate frame %d", seq)
			}
			seen[seq] = true
			p, i := int(seq)/perProducer, int(seq)%perProducer
			if i <= last[p] {
				t.Fatalf("producer %d reordered: %d after %d", p, i, last[p])
			}
			last[p] = i
		}
	}
	for {
		select {
		case <-done:
			drain()
			if len(seen) != producers*perProducer {
				t.Fatalf("expected %d frames, got %d", producers*perProducer, len(seen))
			}
			return
		default:
			drain()
		}
	}
}

func TestBufferQueue_BoundedRejectsWhenFull(t *testing.T) {
	q := NewBufferQueue(2)
	for i := 1; i <= 2; i++ {
		if err := q.Push(NewFrame(nil, 16000, uint64(i))); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	if err := q.Push(NewFrame(nil, 16000, 3)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", q.Dropped())
	}

	frames := q.PopAll()
	if len(frames) != 2 || frames[0].Sequence() != 1 || frames[1].Sequence() != 2 {
		t.Fatalf("expected frames 1 and 2, got %+v", frames)
	}
	if err := q.Push(NewFrame(nil, 16000, 4)); err != nil {
		t.Fatalf("expected room after PopAll, got %v", err)
	}
}

func TestBufferQueue_ClearConcurrentWithPush(t *testing.T) {
	const total = 2000
	q := NewBufferQueue(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			_ = q.Push(NewFrame(nil, 16000, uint64(i)))
		}
	}()

	cleared := 0
	for i := 0; i < 100; i++ {
		cleared += q.Clear()
	}
	wg.Wait()
	cleared += q.Clear()

	if cleared != total {
		t.Fatalf("expected %d frames cleared in total, got %d", total, cleared)
	}
}

func TestBufferQueue_PopOneEmpty(t *testing.T) {
	q := NewBufferQueue(0)
	if _, ok := q.PopOne(); ok {
		t.Fatal("expected PopOne on empty queue to report false")
	}
	if frames := q.PopAll(); frames != nil {
		t.Fatalf("expected nil from empty PopAll, got %v", frames)
	}
}
