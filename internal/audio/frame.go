package audio

import (
	"slices"
	"time"
)

// Frame 一段已转换为引擎格式（单声道 int16）的音频
// 创建后不可变：构造时复制输入，Samples 返回副本。
type Frame struct {
	samples    []int16
	sampleRate int
	sequence   uint64
}

func NewFrame(samples []int16, sampleRate int, sequence uint64) Frame {
	return Frame{
		samples:    slices.Clone(samples),
		sampleRate: sampleRate,
		sequence:   sequence,
	}
}

func (f Frame) Samples() []int16 {
	return slices.Clone(f.samples)
}

func (f Frame) Len() int {
	return len(f.samples)
}

func (f Frame) SampleRate() int {
	return f.sampleRate
}

// Sequence 会话内从 1 开始递增的帧序号
func (f Frame) Sequence() uint64 {
	return f.sequence
}

func (f Frame) Duration() time.Duration {
	if f.sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.samples)) * time.Second / time.Duration(f.sampleRate)
}

// PCM 从文件中提取出的原始音频
type PCM struct {
	Data   []byte
	Format Format
}

func (p PCM) Duration() time.Duration {
	return p.Format.Duration(len(p.Data))
}
