package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/audio/source"
	"github.com/liuscraft/orion-stt/internal/logging"
)

func main() {
	testRead := flag.Bool("test-read", false, "capture from the input device and report block timing")
	duration := flag.Int("duration", 5, "duration of the read test in seconds")
	device := flag.String("device", "", "input device for the read test (partial name match)")
	rate := flag.Int("rate", 0, "sample rate for the read test (default 16000)")
	blockMs := flag.Int("block-ms", 100, "block duration for the read test")
	highLatency := flag.Bool("high-latency", false, "use the device's high-latency setting for the read test")
	flag.Parse()

	if err := logging.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	fmt.Println("=== PortAudio Input Device Diagnostics ===")
	fmt.Println()

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize PortAudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	if *testRead {
		runReadTest(source.MicrophoneConfig{
			SampleRate:  *rate,
			Channels:    1,
			BlockMs:     *blockMs,
			HighLatency: *highLatency,
			Device:      *device,
		}, time.Duration(*duration)*time.Second)
		return
	}

	hostAPIs, err := portaudio.HostApis()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get host APIs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d Host API(s):\n", len(hostAPIs))
	for i, api := range hostAPIs {
		fmt.Printf("  [%d] %s (devices: %d)\n", i, api.Name, len(api.Devices))
	}
	fmt.Println()

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		fmt.Printf("Default Input Device: (error: %v)\n", err)
	} else {
		fmt.Printf("Default Input Device: %s\n", defaultInput.Name)
	}
	fmt.Println()

	devices, err := portaudio.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get devices: %v\n", err)
		os.Exit(1)
	}

	inputs := 0
	for i, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		inputs++
		marker := ""
		if defaultInput != nil && dev.Name == defaultInput.Name {
			marker = " [DEFAULT]"
		}
		if looksBluetooth(dev.Name) {
			marker += " (Bluetooth?)"
		}

		fmt.Printf("[%d] %s%s\n", i, dev.Name, marker)
		fmt.Printf("    Max Input Channels:  %d\n", dev.MaxInputChannels)
		fmt.Printf("    Default Sample Rate: %.0f Hz\n", dev.DefaultSampleRate)
		fmt.Printf("    Input Latency:  Low=%.1fms, High=%.1fms\n",
			dev.DefaultLowInputLatency.Seconds()*1000,
			dev.DefaultHighInputLatency.Seconds()*1000)

		if dev.DefaultSampleRate != audio.DefaultTargetRate {
			fmt.Printf("    note: audio will be resampled from %.0f Hz to the model rate\n", dev.DefaultSampleRate)
		}
		if dev.DefaultHighInputLatency.Seconds()*1000 > 100 {
			fmt.Printf("    note: high input latency (%.1fms), consider capture.high_latency: true\n",
				dev.DefaultHighInputLatency.Seconds()*1000)
		}
		fmt.Println()
	}
	fmt.Printf("=== %d input device(s) ===\n\n", inputs)

	if defaultInput != nil && defaultInput.MaxInputChannels > 0 {
		printRecommendedConfig(defaultInput)
	}
}

func looksBluetooth(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range []string{"bluetooth", "airpods", "buds", "wireless", "headset"} {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func printRecommendedConfig(dev *portaudio.DeviceInfo) {
	sampleRate := int(dev.DefaultSampleRate)
	if sampleRate == 0 {
		sampleRate = audio.DefaultTargetRate
	}
	highLatency := dev.DefaultHighInputLatency.Seconds()*1000 > 50

	// a block should cover at least twice the device latency
	blockMs := int(dev.DefaultHighInputLatency.Seconds() * 1000 * 2)
	if blockMs < 100 {
		blockMs = 100
	}

	fmt.Println("=== Recommended capture config for the default input ===")
	fmt.Println()
	fmt.Println("Add this to config/stt.json:")
	fmt.Println()
	fmt.Println("\"capture\": {")
	fmt.Printf("    \"device\": %q,\n", dev.Name)
	fmt.Printf("    \"sample_rate\": %d,\n", sampleRate)
	fmt.Println("    \"channels\": 1,")
	fmt.Printf("    \"block_ms\": %d,\n", blockMs)
	fmt.Printf("    \"high_latency\": %v\n", highLatency)
	fmt.Println("}")
	fmt.Println()
	fmt.Printf("Keep pipeline.feed_interval_ms a little above block_ms (e.g. %d).\n", blockMs+blockMs/5)
}

func runReadTest(cfg source.MicrophoneConfig, duration time.Duration) {
	fmt.Println("=== Read Test ===")

	mic, err := source.NewMicrophone(cfg)
	if err != nil {
		fmt.Printf("Failed to open input stream: %v\n", err)
		return
	}
	defer mic.Close()
	format := mic.Format()
	fmt.Printf("Capturing %s in %d ms blocks for %v...\n", format, cfg.BlockMs, duration)

	var (
		mu       sync.Mutex
		blocks   int
		samples  int
		peak     int16
		maxGap   time.Duration
		lastSeen time.Time
	)
	err = mic.Start(func(raw []byte, f audio.Format) {
		now := time.Now()
		mu.Lock()
		defer mu.Unlock()
		if !lastSeen.IsZero() {
			maxGap = max(maxGap, now.Sub(lastSeen))
		}
		lastSeen = now
		blocks++
		pcm := audio.BytesToInt16(raw)
		samples += len(pcm) / f.Channels
		for _, s := range pcm {
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
	})
	if err != nil {
		fmt.Printf("Failed to start capture: %v\n", err)
		return
	}
	time.Sleep(duration)
	if err := mic.Stop(); err != nil {
		fmt.Printf("Stop failed: %v\n", err)
	}

	mu.Lock()
	defer mu.Unlock()
	expected := duration.Seconds() * float64(format.SampleRate)
	fmt.Println()
	fmt.Println("=== Test Results ===")
	fmt.Printf("Blocks received:  %d\n", blocks)
	fmt.Printf("Samples received: %d (expected ~%.0f)\n", samples, expected)
	fmt.Printf("Longest gap:      %.1fms (block is %dms)\n", maxGap.Seconds()*1000, cfg.BlockMs)
	fmt.Printf("Peak level:       %d / 32767\n", peak)

	switch {
	case blocks == 0:
		fmt.Println("No audio arrived. Check the device name and OS microphone permissions.")
	case float64(samples) < expected*0.9:
		fmt.Println("Audio is arriving slower than real time; try -high-latency or a larger -block-ms.")
	case peak == 0:
		fmt.Println("Audio is silent; the device may be muted.")
	default:
		fmt.Println("Capture looks healthy.")
	}
}
