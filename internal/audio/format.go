package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/liuscraft/orion-stt/internal/errs"
)

// Encoding 原始采样编码（均为小端、交错存储）
type Encoding int

const (
	EncodingS16LE Encoding = iota
	EncodingU8
	EncodingS24LE
	EncodingS32LE
	EncodingF32LE
	// EncodingF64LE 仅用于描述文件格式，转换器不支持
	EncodingF64LE
)

func (e Encoding) String() string {
	switch e {
	case EncodingU8:
		return "u8"
	case EncodingS16LE:
		return "s16le"
	case EncodingS24LE:
		return "s24le"
	case EncodingS32LE:
		return "s32le"
	case EncodingF32LE:
		return "f32le"
	case EncodingF64LE:
		return "f64le"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// BytesPerSample 单声道单个采样的字节数
func (e Encoding) BytesPerSample() int {
	switch e {
	case EncodingU8:
		return 1
	case EncodingS16LE:
		return 2
	case EncodingS24LE:
		return 3
	case EncodingS32LE, EncodingF32LE:
		return 4
	case EncodingF64LE:
		return 8
	default:
		return 0
	}
}

// ErrUnsupportedFormat matches every conversion failure caused by the
// source format.
var ErrUnsupportedFormat = errs.New(errs.KindConversion, "", "")

// Format 描述采集设备或文件的原生音频格式
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// Mono16k 引擎默认输入格式
var Mono16k = Format{SampleRate: 16000, Channels: 1, Encoding: EncodingS16LE}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.Encoding)
}

// FrameBytes 一个交错采样帧（所有声道）的字节数
func (f Format) FrameBytes() int {
	return f.Channels * f.Encoding.BytesPerSample()
}

// Duration returns how long n bytes of audio in this format last.
func (f Format) Duration(n int) time.Duration {
	fb := f.FrameBytes()
	if fb == 0 || f.SampleRate <= 0 {
		return 0
	}
	frames := n / fb
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks the format can be converted.
func (f Format) Validate() error {
	const op = "audio.Format.Validate"
	if f.SampleRate <= 0 {
		return errs.Newf(errs.KindConversion, op, "invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return errs.Newf(errs.KindConversion, op, "invalid channel count %d", f.Channels)
	}
	switch f.Encoding {
	case EncodingU8, EncodingS16LE, EncodingS24LE, EncodingS32LE, EncodingF32LE:
		return nil
	default:
		return errs.Newf(errs.KindConversion, op, "unsupported encoding %s", f.Encoding)
	}
}

// sampleAt 读取一个采样并归一到 16 位范围
func sampleAt(b []byte, enc Encoding) int32 {
	switch enc {
	case EncodingU8:
		return (int32(b[0]) - 128) << 8
	case EncodingS16LE:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case EncodingS24LE:
		v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
		return v >> 8
	case EncodingS32LE:
		return int32(binary.LittleEndian.Uint32(b)) >> 16
	case EncodingF32LE:
		return floatToS16(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	default:
		return 0
	}
}

func floatToS16(v float64) int32 {
	s := v * 32768
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int32(s)
}

// Mixdown 多声道折叠为单声道的策略
type Mixdown int

const (
	// MixdownAverage 各声道算术平均，向零截断
	MixdownAverage Mixdown = iota
	// MixdownFirstChannel 只取第一个声道
	MixdownFirstChannel
)

// ParseMixdown maps a config value to a Mixdown, ignoring case and
// surrounding space.
func ParseMixdown(s string) (Mixdown, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "average":
		return MixdownAverage, nil
	case "first":
		return MixdownFirstChannel, nil
	default:
		return MixdownAverage, fmt.Errorf("unknown mixdown %q", s)
	}
}

// decodeMono 把完整的交错采样帧解码为单声道 int16
func decodeMono(raw []byte, f Format, mix Mixdown) []int16 {
	bps := f.Encoding.BytesPerSample()
	fb := f.FrameBytes()
	n := len(raw) / fb
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		frame := raw[i*fb : (i+1)*fb]
		if f.Channels == 1 || mix == MixdownFirstChannel {
			out[i] = int16(sampleAt(frame[:bps], f.Encoding))
			continue
		}
		var sum int32
		for ch := 0; ch < f.Channels; ch++ {
			sum += sampleAt(frame[ch*bps:(ch+1)*bps], f.Encoding)
		}
		out[i] = int16(sum / int32(f.Channels))
	}
	return out
}

// Int16ToBytes 将 int16 数组转换为 byte 数组 (Little Endian)
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return data
}

// BytesToInt16 将 byte 数组转换为 int16 数组 (Little Endian)，忽略末尾的奇数字节
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
