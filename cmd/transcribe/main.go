package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/liuscraft/orion-stt/internal/app"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/engine/coqui"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/recognition"
)

type output struct {
	Path       string                       `json:"path"`
	Text       string                       `json:"text"`
	Candidates []engine.CandidateTranscript `json:"candidates,omitempty"`
	Error      string                       `json:"error,omitempty"`
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	workers := flag.Int("workers", 0, "files transcribed in parallel (directory mode), overrides config")
	candidates := flag.Int("candidates", 0, "number of candidate transcripts, overrides config")
	asJSON := flag.Bool("json", false, "print one JSON object per file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <audio file or directory>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	target := flag.Arg(0)

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *candidates > 0 {
		cfg.Engine.NumResults = *candidates
	}

	opts, err := recognition.BatchOptionsFrom(cfg)
	if err != nil {
		logging.Fatalf("Invalid pipeline config: %v", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		logging.Fatalf("Cannot read %s: %v", target, err)
	}

	model, err := app.LoadModel(coqui.NewEngine(), cfg)
	if err != nil {
		logging.Fatalf("Failed to load model: %v", err)
	}
	defer model.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var results []recognition.FileResult
	if info.IsDir() {
		results, err = recognition.TranscribeDir(ctx, model, target, opts)
		if err != nil {
			logging.Errorf("Transcription stopped: %v", err)
		}
	} else {
		res, err := recognition.TranscribeFile(ctx, model, target, opts)
		results = []recognition.FileResult{{Path: target, Result: res, Err: err}}
	}

	failed := 0
	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		if *asJSON {
			out := output{Path: r.Path, Text: r.Result.Text, Candidates: r.Result.Candidates}
			if r.Err != nil {
				out.Error = r.Err.Error()
			}
			_ = enc.Encode(out)
			continue
		}
		if r.Err != nil {
			fmt.Printf("%s: error: %v\n", r.Path, r.Err)
			continue
		}
		fmt.Printf("%s: %s\n", r.Path, r.Result.Text)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
