package source

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/logging"
)

// MicrophoneConfig 麦克风采集参数
type MicrophoneConfig struct {
	SampleRate int
	Channels   int
	// BlockMs 每次回调的音频时长，默认 100ms
	BlockMs int
	// HighLatency 使用设备的默认高延迟设置（适合蓝牙设备）
	HighLatency bool
	// Device 设备名称（部分匹配），空字符串表示默认设备
	Device string
}

// Microphone 基于 PortAudio 阻塞读的采集源，实现 audio.Capture
type Microphone struct {
	stream     audioStream
	format     audio.Format
	bufferSize int
	buffer     []int16

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	// 诊断指标
	totalReads   int64
	blockedReads int64
	overflows    int64
	lastLogTime  time.Time
}

type audioStream interface {
	Start() error
	Read() error
	Abort() error
	Stop() error
	Close() error
}

// NewMicrophone 打开输入流但不启动。
// PortAudio 需要由调用方 Initialize，避免多次初始化导致设备冲突。
func NewMicrophone(cfg MicrophoneConfig) (*Microphone, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.BlockMs <= 0 {
		cfg.BlockMs = 100
	}
	bufferSize := cfg.SampleRate * cfg.BlockMs / 1000
	buffer := make([]int16, bufferSize*cfg.Channels)

	logging.Infof("Microphone: creating source (highLatency=%v, device=%q, block=%dms)...",
		cfg.HighLatency, cfg.Device, cfg.BlockMs)

	var inputDevice *portaudio.DeviceInfo
	if cfg.Device != "" {
		dev, err := findInputDeviceByName(cfg.Device)
		if err != nil {
			logging.Warnf("Microphone: device %q not found, falling back to default: %v", cfg.Device, err)
		}
		inputDevice = dev
	}
	if inputDevice == nil {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			logging.Errorf("Microphone: failed to get default input device: %v", err)
			return openDefault(cfg, bufferSize, buffer)
		}
		inputDevice = dev
	}

	latency := inputDevice.DefaultLowInputLatency
	latencyMode := "low"
	if cfg.HighLatency {
		latency = inputDevice.DefaultHighInputLatency
		latencyMode = "high"
	}
	logging.Infof("Microphone: device=%s, %s latency=%.1fms", inputDevice.Name, latencyMode, latency.Seconds()*1000)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inputDevice,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: bufferSize,
	}
	stream, err := portaudio.OpenStream(params, &buffer)
	if err != nil {
		logging.Errorf("Microphone: failed to open stream with params: %v, falling back to default", err)
		return openDefault(cfg, bufferSize, buffer)
	}

	logging.Infof("Microphone: created with sampleRate=%d, channels=%d, framesPerBuffer=%d (stream not started yet)",
		cfg.SampleRate, cfg.Channels, bufferSize)
	return newMicrophoneWithStream(stream, formatOf(cfg), bufferSize, buffer), nil
}

func openDefault(cfg MicrophoneConfig, bufferSize int, buffer []int16) (*Microphone, error) {
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), bufferSize, &buffer)
	if err != nil {
		return nil, fmt.Errorf("open default input stream: %w", err)
	}
	logging.Infof("Microphone: created with fallback (sampleRate=%d, channels=%d, framesPerBuffer=%d)",
		cfg.SampleRate, cfg.Channels, bufferSize)
	return newMicrophoneWithStream(stream, formatOf(cfg), bufferSize, buffer), nil
}

func formatOf(cfg MicrophoneConfig) audio.Format {
	return audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels, Encoding: audio.EncodingS16LE}
}

// findInputDeviceByName 按名称查找输入设备（支持部分匹配）
func findInputDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	nameLower := strings.ToLower(name)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), nameLower) {
			logging.Infof("Microphone: found device %q matching %q", dev.Name, name)
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no input device found matching %q", name)
}

func newMicrophoneWithStream(stream audioStream, format audio.Format, bufferSize int, buffer []int16) *Microphone {
	return &Microphone{
		stream:     stream,
		format:     format,
		bufferSize: bufferSize,
		buffer:     buffer,
	}
}

// Format 设备原生格式
func (m *Microphone) Format() audio.Format {
	return m.format
}

func (m *Microphone) Start(onBlock audio.BlockHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("microphone already started")
	}
	logging.Infof("Microphone: starting stream...")
	if err := m.stream.Start(); err != nil {
		logging.Errorf("Microphone: failed to start stream: %v", err)
		return fmt.Errorf("start input stream: %w", err)
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	go m.captureLoop(onBlock, m.stopCh, m.done)

	logging.Infof("Microphone: stream started")
	return nil
}

// Stop 中止流以解除阻塞的 Read，并等待采集 goroutine 退出
func (m *Microphone) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	logging.Infof("Microphone: stopping...")
	close(stopCh)
	if err := m.stream.Abort(); err != nil {
		logging.Errorf("Microphone: error aborting stream: %v", err)
	}
	<-done
	logging.Infof("Microphone: stopped")
	return nil
}

// Close 停止采集并释放流
func (m *Microphone) Close() error {
	_ = m.Stop()
	if err := m.stream.Close(); err != nil {
		logging.Errorf("Microphone: error closing stream: %v", err)
		return err
	}
	return nil
}

func (m *Microphone) captureLoop(onBlock audio.BlockHandler, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	logging.Infof("Microphone: capture goroutine started")
	defer logging.Infof("Microphone: capture goroutine stopped")

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		readStart := time.Now()
		err := m.stream.Read()
		m.recordReadMetrics(time.Since(readStart))

		select {
		case <-stopCh:
			return
		default:
		}

		if err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				m.overflows++
				logging.Warnf("Microphone: input overflowed (%d so far)", m.overflows)
			} else {
				logging.Errorf("Microphone: read error, capture stopped: %v", err)
				return
			}
		}

		if onBlock != nil {
			onBlock(audio.Int16ToBytes(m.buffer), m.format)
		}
	}
}

func (m *Microphone) recordReadMetrics(duration time.Duration) {
	m.totalReads++

	// 预期读取时间：bufferSize / sampleRate，例如 1600 samples @ 16kHz = 100ms
	expected := time.Duration(m.bufferSize) * time.Second / time.Duration(m.format.SampleRate)
	if duration > expected*3 {
		m.blockedReads++
		logging.Warnf("Microphone: Read blocked for %v (expected ~%v), blocked count: %d/%d",
			duration, expected, m.blockedReads, m.totalReads)
	}

	now := time.Now()
	if now.Sub(m.lastLogTime) >= 10*time.Second {
		m.lastLogTime = now
		logging.Debugf("Microphone: metrics - total reads: %d, blocked: %d, overflows: %d",
			m.totalReads, m.blockedReads, m.overflows)
	}
}
