package audio

// Resampler 流式重采样器接口（单声道 int16）
// 分块调用 Process 的输出与一次性处理完全一致。
type Resampler interface {
	// Process 输入一块采样，返回当前可以确定的输出采样
	Process(input []int16) []int16
	// Flush 输出剩余尾部，之后重采样器回到初始状态
	Flush() []int16
	// Reset 丢弃所有历史
	Reset()
}

// Resample 一次性重采样整段单声道音频
func Resample(input []int16, inputRate, outputRate int) ([]int16, error) {
	r, err := NewLinearResampler(inputRate, outputRate)
	if err != nil {
		return nil, err
	}
	out := r.Process(input)
	return append(out, r.Flush()...), nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
