package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WAVWriter 流式写入 16 位 PCM WAV 文件，Close 时由编码器回填头部长度
type WAVWriter struct {
	enc    *wav.Encoder
	format *goaudio.Format
	closer io.Closer
	closed bool
}

// CreateWAV 创建文件并写入头部
func CreateWAV(path string, sampleRate, channels int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWAVWriter(f, sampleRate, channels)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

func NewWAVWriter(w io.WriteSeeker, sampleRate, channels int) (*WAVWriter, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid wav format: %dHz/%dch", sampleRate, channels)
	}
	ww := &WAVWriter{
		enc:    wav.NewEncoder(w, sampleRate, wavBitDepth, channels, wavFormatPCM),
		format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
	}
	// 编码器在第一次 Write 时才写头部；先写一个空缓冲，没有采样的录音关闭后也是合法文件
	if err := ww.enc.Write(ww.buffer(nil)); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return ww, nil
}

// WriteSamples 追加交错的 int16 采样
func (w *WAVWriter) WriteSamples(samples []int16) error {
	if w.closed {
		return fmt.Errorf("wav writer closed")
	}
	if len(samples) == 0 {
		return nil
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	return w.enc.Write(w.buffer(data))
}

// Close 回填 RIFF 与 data 长度，并关闭由 CreateWAV 打开的文件
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.enc.Close()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *WAVWriter) buffer(data []int) *goaudio.IntBuffer {
	return &goaudio.IntBuffer{Format: w.format, Data: data, SourceBitDepth: wavBitDepth}
}
