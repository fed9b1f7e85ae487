package audio

import (
	"errors"
	"sync"
)

// ErrQueueFull is returned by Push on a bounded queue at capacity. The frame
// is not enqueued.
var ErrQueueFull = errors.New("audio: buffer queue full")

// BufferQueue 采集端与喂数据端之间的 FIFO 帧队列
// Push 永不阻塞；并发 Push/Pop 下不重排、不重复、不丢失（有界且满时除外）。
type BufferQueue struct {
	mu       sync.Mutex
	frames   []Frame
	capacity int
	dropped  uint64
}

// NewBufferQueue capacity 为 0 表示不限长度
func NewBufferQueue(capacity int) *BufferQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &BufferQueue{capacity: capacity}
}

func (q *BufferQueue) Push(frame Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.capacity > 0 && len(q.frames) >= q.capacity {
		q.dropped++
		return ErrQueueFull
	}
	q.frames = append(q.frames, frame)
	return nil
}

// PopAll 原子地取出全部帧，保持入队顺序
func (q *BufferQueue) PopAll() []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil
	}
	frames := q.frames
	q.frames = nil
	return frames
}

func (q *BufferQueue) PopOne() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return Frame{}, false
	}
	frame := q.frames[0]
	q.frames[0] = Frame{}
	q.frames = q.frames[1:]
	return frame, true
}

// Clear 丢弃所有帧，返回丢弃的数量
func (q *BufferQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.frames)
	q.frames = nil
	return n
}

func (q *BufferQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped 因队列已满被拒绝的帧总数
func (q *BufferQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
