package audio

import (
	"sync"

	"github.com/liuscraft/orion-stt/internal/errs"
	"github.com/liuscraft/orion-stt/internal/logging"
)

const (
	DefaultTargetRate = 16000
	DefaultFrameMs    = 20
)

type ConverterConfig struct {
	// TargetRate 引擎期望的采样率，默认 16000
	TargetRate int
	// FrameSamples 每帧采样数，默认 20ms
	FrameSamples int
	Mixdown      Mixdown
}

// Converter 把设备原生格式的字节块转换为引擎格式的 Frame
//
// 跨块保留三类状态：不完整的采样帧字节、重采样历史与相位、未满的输出帧。
// 因此无论输入如何分块，输出都完全相同。
type Converter struct {
	cfg ConverterConfig

	mu        sync.Mutex
	src       Format
	hasSrc    bool
	pending   []byte
	resampler *LinearResampler
	out       []int16
	seq       uint64
}

func NewConverter(cfg ConverterConfig) *Converter {
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = DefaultTargetRate
	}
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = cfg.TargetRate * DefaultFrameMs / 1000
	}
	return &Converter{cfg: cfg}
}

func (c *Converter) TargetRate() int {
	return c.cfg.TargetRate
}

func (c *Converter) FrameSamples() int {
	return c.cfg.FrameSamples
}

// Convert 转换一个原始字节块。不支持的格式返回 KindConversion 错误，调用方不应重试。
func (c *Converter) Convert(raw []byte, src Format) ([]Frame, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var frames []Frame
	if c.hasSrc && src != c.src {
		frames = c.switchFormat(src)
	} else if !c.hasSrc {
		if err := c.setFormat(src); err != nil {
			return nil, err
		}
	}

	data := raw
	if len(c.pending) > 0 {
		data = append(c.pending, raw...)
		c.pending = nil
	}
	fb := src.FrameBytes()
	whole := len(data) / fb * fb
	if whole < len(data) {
		c.pending = append([]byte(nil), data[whole:]...)
	}
	if whole == 0 {
		return frames, nil
	}

	mono := decodeMono(data[:whole], src, c.cfg.Mixdown)
	c.out = append(c.out, c.resampler.Process(mono)...)
	return append(frames, c.sliceFrames(false)...), nil
}

// Flush 输出重采样尾部和最后一个不满的帧。不完整的采样帧字节被丢弃。
func (c *Converter) Flush() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resampler != nil {
		c.out = append(c.out, c.resampler.Flush()...)
	}
	if len(c.pending) > 0 {
		logging.Debugf("Converter: dropping %d trailing bytes of a partial sample frame", len(c.pending))
		c.pending = nil
	}
	return c.sliceFrames(true)
}

// Reset 清空所有跨块状态并把序号归零
func (c *Converter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hasSrc = false
	c.src = Format{}
	c.pending = nil
	c.resampler = nil
	c.out = nil
	c.seq = 0
}

func (c *Converter) setFormat(src Format) error {
	r, err := NewLinearResampler(src.SampleRate, c.cfg.TargetRate)
	if err != nil {
		return errs.Wrap(errs.KindConversion, "audio.Converter", "build resampler", err)
	}
	c.resampler = r
	c.src = src
	c.hasSrc = true
	return nil
}

// switchFormat 源格式中途变化：输出旧格式的重采样尾部，丢弃旧格式的不完整采样帧，
// 按新格式重建重采样器。输出帧与序号保持连续。
func (c *Converter) switchFormat(src Format) []Frame {
	logging.Infof("Converter: source format changed %s -> %s", c.src, src)
	c.out = append(c.out, c.resampler.Flush()...)
	if len(c.pending) > 0 {
		logging.Warnf("Converter: dropping %d bytes of a partial %s sample frame", len(c.pending), c.src)
		c.pending = nil
	}
	// src 已经校验过，重采样器不会失败
	_ = c.setFormat(src)
	return c.sliceFrames(false)
}

func (c *Converter) sliceFrames(final bool) []Frame {
	n := c.cfg.FrameSamples
	var frames []Frame
	for len(c.out) >= n {
		c.seq++
		frames = append(frames, NewFrame(c.out[:n], c.cfg.TargetRate, c.seq))
		c.out = c.out[n:]
	}
	if final && len(c.out) > 0 {
		c.seq++
		frames = append(frames, NewFrame(c.out, c.cfg.TargetRate, c.seq))
		c.out = nil
	}
	if len(c.out) == 0 {
		c.out = nil
	}
	return frames
}
