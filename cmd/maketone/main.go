package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/liuscraft/orion-stt/internal/audio"
)

func main() {
	output := flag.String("o", "tone.wav", "输出文件")
	freq := flag.Float64("freq", 440, "频率 (Hz)")
	duration := flag.Float64("duration", 2, "时长 (秒)")
	rate := flag.Int("rate", 16000, "采样率 (Hz)")
	channels := flag.Int("channels", 1, "声道数")
	flag.Parse()

	fmt.Printf("生成音频文件: %s (频率: %.0fHz, 时长: %.1f秒, %dHz x %d)\n", *output, *freq, *duration, *rate, *channels)

	if err := generateWAV(*output, *freq, *duration, *rate, *channels); err != nil {
		fmt.Fprintf(os.Stderr, "生成失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("完成!")
}

func generateWAV(path string, freq, duration float64, rate, channels int) error {
	w, err := audio.CreateWAV(path, rate, channels)
	if err != nil {
		return err
	}

	frames := int(duration * float64(rate))
	block := make([]int16, 0, rate/10*channels)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(rate)
		sample := int16(32767 * 0.5 * math.Sin(2*math.Pi*freq*t))
		for ch := 0; ch < channels; ch++ {
			block = append(block, sample)
		}
		if len(block) == cap(block) {
			if err := w.WriteSamples(block); err != nil {
				_ = w.Close()
				return err
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		if err := w.WriteSamples(block); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
