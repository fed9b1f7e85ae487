package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/liuscraft/orion-stt/internal/audio"
)

func main() {
	input := flag.String("input", "", "audio file to convert (generates a sine wave if empty)")
	inputRate := flag.Int("input-rate", 48000, "sine wave sample rate (Hz)")
	channels := flag.Int("channels", 2, "sine wave channels")
	duration := flag.Float64("duration", 1.0, "sine wave duration in seconds")
	freq := flag.Float64("freq", 440.0, "sine wave frequency in Hz")
	targetRate := flag.Int("target-rate", audio.DefaultTargetRate, "engine sample rate (Hz)")
	frameMs := flag.Int("frame-ms", audio.DefaultFrameMs, "frame duration in ms")
	blockMs := flag.Int("block-ms", 100, "feed the converter in blocks of this many ms")
	mixdown := flag.String("mixdown", "average", "channel mixdown: average or first")
	output := flag.String("output", "", "write the converted audio to this WAV file")
	flag.Parse()

	mix, err := audio.ParseMixdown(*mixdown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	var pcm audio.PCM
	if *input != "" {
		pcm, err = audio.ReadFile(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *input, err)
			os.Exit(1)
		}
	} else {
		pcm = sine(*inputRate, *channels, *duration, *freq)
	}

	fmt.Printf("Format Conversion Demo\n")
	fmt.Printf("======================\n")
	fmt.Printf("Source:  %s, %v\n", pcm.Format, pcm.Duration())
	fmt.Printf("Target:  %d Hz mono, %d ms frames\n", *targetRate, *frameMs)
	fmt.Printf("Blocks:  %d ms\n\n", *blockMs)

	conv := audio.NewConverter(audio.ConverterConfig{
		TargetRate:   *targetRate,
		FrameSamples: *targetRate * *frameMs / 1000,
		Mixdown:      mix,
	})

	blockBytes := pcm.Format.FrameBytes() * pcm.Format.SampleRate * *blockMs / 1000
	if blockBytes <= 0 {
		blockBytes = len(pcm.Data)
	}

	var frames []audio.Frame
	for off := 0; off < len(pcm.Data); off += blockBytes {
		end := min(off+blockBytes, len(pcm.Data))
		out, err := conv.Convert(pcm.Data[off:end], pcm.Format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
			os.Exit(1)
		}
		frames = append(frames, out...)
	}
	frames = append(frames, conv.Flush()...)

	inFrames := len(pcm.Data) / pcm.Format.FrameBytes()
	outSamples := 0
	for _, f := range frames {
		outSamples += f.Len()
	}
	fmt.Printf("Input sample frames: %d\n", inFrames)
	fmt.Printf("Output samples:      %d in %d frames (last seq %d)\n", outSamples, len(frames), lastSeq(frames))
	if inFrames > 0 {
		fmt.Printf("Sample rate ratio: %.4f\n", float64(outSamples)/float64(inFrames))
	}
	fmt.Printf("Expected ratio:    %.4f\n", float64(*targetRate)/float64(pcm.Format.SampleRate))

	if *output != "" {
		if err := writeFrames(*output, *targetRate, frames); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nOutput written to: %s\n", *output)
	}
}

func sine(rate, channels int, duration, freq float64) audio.PCM {
	n := int(float64(rate) * duration)
	samples := make([]int16, 0, n*channels)
	for i := 0; i < n; i++ {
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 16000)
		for ch := 0; ch < channels; ch++ {
			samples = append(samples, v)
		}
	}
	return audio.PCM{
		Data:   audio.Int16ToBytes(samples),
		Format: audio.Format{SampleRate: rate, Channels: channels, Encoding: audio.EncodingS16LE},
	}
}

func lastSeq(frames []audio.Frame) uint64 {
	if len(frames) == 0 {
		return 0
	}
	return frames[len(frames)-1].Sequence()
}

func writeFrames(path string, rate int, frames []audio.Frame) error {
	w, err := audio.CreateWAV(path, rate, 1)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := w.WriteSamples(f.Samples()); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
