package source

import (
	"errors"
	"sync"
	"time"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/logging"
)

// File 把提取好的 PCM 按固定块回放，模拟实时采集
type File struct {
	pcm      audio.PCM
	blockMs  int
	realtime bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	// ended 整段回放结束时关闭，Stop 中途停止时不关闭
	ended chan struct{}
}

// NewFile realtime 为 true 时每块之间等待一个块的时长
func NewFile(pcm audio.PCM, blockMs int, realtime bool) *File {
	if blockMs <= 0 {
		blockMs = 100
	}
	return &File{pcm: pcm, blockMs: blockMs, realtime: realtime, ended: make(chan struct{})}
}

// OpenFile 读取音频文件并创建回放源
func OpenFile(path string, blockMs int, realtime bool) (*File, error) {
	pcm, err := audio.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewFile(pcm, blockMs, realtime), nil
}

// Ended 全部音频已交付后关闭
func (f *File) Ended() <-chan struct{} {
	return f.ended
}

func (f *File) blockBytes() int {
	fb := f.pcm.Format.FrameBytes()
	n := f.pcm.Format.SampleRate * f.blockMs / 1000 * fb
	if n < fb {
		n = fb
	}
	return n
}

func (f *File) Start(onBlock audio.BlockHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return errors.New("file source already started")
	}
	if f.pcm.Format.FrameBytes() == 0 {
		return audio.ErrUnsupportedFormat
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.done = make(chan struct{})
	go f.play(onBlock, f.stopCh, f.done)
	return nil
}

func (f *File) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	stopCh, done := f.stopCh, f.done
	f.mu.Unlock()

	close(stopCh)
	<-done
	return nil
}

func (f *File) play(onBlock audio.BlockHandler, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	size := f.blockBytes()
	interval := time.Duration(f.blockMs) * time.Millisecond
	var ticker *time.Ticker
	if f.realtime {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	data := f.pcm.Data
	for off := 0; off < len(data); off += size {
		select {
		case <-stopCh:
			return
		default:
		}

		end := off + size
		if end > len(data) {
			end = len(data)
		}
		if onBlock != nil {
			onBlock(data[off:end], f.pcm.Format)
		}

		if ticker != nil {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
			}
		}
	}

	logging.Debugf("FileSource: replayed %v of audio", f.pcm.Duration())
	select {
	case <-f.ended:
	default:
		close(f.ended)
	}
}
