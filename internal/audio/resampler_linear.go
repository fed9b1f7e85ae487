package audio

import (
	"fmt"
	"math"
)

// LinearResampler 线性插值重采样器
// 使用精确的有理数相位，避免浮点累积误差：
//
//	num = j * in
//	i = num / out, rem = num % out
//	output[j] = (input[i]*(out-rem) + input[i+1]*rem) / out
//
// 其中 in/out 是约分后的输入/输出采样率。
type LinearResampler struct {
	in, out int64

	// history[0] 对应输入的绝对下标 base
	history []int16
	base    int64
	// next 下一个输出采样的绝对下标
	next int64
}

// NewLinearResampler 创建线性插值重采样器
func NewLinearResampler(inputRate, outputRate int) (*LinearResampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: input=%d, output=%d", inputRate, outputRate)
	}
	g := gcd(inputRate, outputRate)
	return &LinearResampler{
		in:  int64(inputRate / g),
		out: int64(outputRate / g),
	}, nil
}

func (r *LinearResampler) Process(input []int16) []int16 {
	if len(input) == 0 {
		return nil
	}
	if r.in == r.out {
		return append([]int16(nil), input...)
	}
	r.history = append(r.history, input...)
	return r.drain(false)
}

func (r *LinearResampler) Flush() []int16 {
	if r.in == r.out {
		return nil
	}
	out := r.drain(true)
	r.Reset()
	return out
}

func (r *LinearResampler) Reset() {
	r.history = r.history[:0]
	r.base = 0
	r.next = 0
}

// drain 输出所有输入已足够的采样；final 时最后一个采样视为保持
func (r *LinearResampler) drain(final bool) []int16 {
	total := r.base + int64(len(r.history))
	var output []int16
	for {
		num := r.next * r.in
		i := num / r.out
		rem := num % r.out
		if i >= total {
			break
		}
		if rem != 0 && i+1 >= total && !final {
			break
		}

		a := int64(r.history[i-r.base])
		b := a
		if i+1 < total {
			b = int64(r.history[i+1-r.base])
		}
		output = append(output, clampS16(divRound(a*(r.out-rem)+b*rem, r.out)))
		r.next++
	}

	// 只保留下一个输出需要的历史
	keep := (r.next * r.in) / r.out
	if keep > total {
		keep = total
	}
	if drop := keep - r.base; drop > 0 {
		r.history = append(r.history[:0], r.history[drop:]...)
		r.base = keep
	}
	return output
}

// divRound 四舍五入（远离零）的整数除法，d > 0
func divRound(n, d int64) int64 {
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}

func clampS16(v int64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
