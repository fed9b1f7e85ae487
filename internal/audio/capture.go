package audio

// BlockHandler 接收一个设备原生格式的音频块。
// 在采集 goroutine 上调用，不得阻塞，只做转换与入队。
type BlockHandler func(raw []byte, format Format)

// Capture 音频采集源
type Capture interface {
	// Start 开始采集，每个音频块调用一次 onBlock
	Start(onBlock BlockHandler) error
	// Stop 停止采集。返回后不会再有回调；可重复调用。
	Stop() error
}
