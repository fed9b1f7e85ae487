package recognition

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/errs"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/stream"
)

type BatchOptions struct {
	TargetRate int
	FrameMs    int
	Mixdown    audio.Mixdown
	NumResults int
	// Workers 目录模式下并发转写的文件数，默认 1
	Workers int
	// Extensions 目录模式下参与转写的扩展名，默认 audio.SupportedExtensions
	Extensions []string
}

func BatchOptionsFrom(app *config.AppConfig) (BatchOptions, error) {
	mix, err := audio.ParseMixdown(app.Pipeline.Mixdown)
	if err != nil {
		return BatchOptions{}, err
	}
	return BatchOptions{
		TargetRate: app.Pipeline.TargetSampleRate,
		FrameMs:    app.Pipeline.FrameMs,
		Mixdown:    mix,
		NumResults: app.Engine.NumResults,
		Workers:    app.Batch.Workers,
		Extensions: app.Batch.Extensions,
	}, nil
}

func (o BatchOptions) converterConfig(modelRate int) audio.ConverterConfig {
	return Config{TargetRate: o.TargetRate, FrameMs: o.FrameMs, Mixdown: o.Mixdown}.converterConfig(modelRate)
}

func (o BatchOptions) accepts(path string) bool {
	if len(o.Extensions) == 0 {
		return audio.IsSupported(path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.ContainsFunc(o.Extensions, func(e string) bool {
		return strings.EqualFold(e, ext)
	})
}

// FileResult is the outcome of one file in a directory run.
type FileResult struct {
	Path   string
	Result engine.Result
	Err    error
}

// Transcribe converts pcm to the engine format, feeds all of it through a
// fresh session and returns the final result. The stream is released on
// every path.
func Transcribe(ctx context.Context, model engine.Model, pcm audio.PCM, opts BatchOptions) (engine.Result, error) {
	session, err := stream.Open(model)
	if err != nil {
		return engine.Result{}, err
	}
	log := logging.WithSession(session.ID())

	conv := audio.NewConverter(opts.converterConfig(model.SampleRate()))
	frames, err := conv.Convert(pcm.Data, pcm.Format)
	if err != nil {
		_ = session.Discard()
		return engine.Result{}, err
	}
	frames = append(frames, conv.Flush()...)

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			_ = session.Discard()
			return engine.Result{}, err
		}
		if err := session.Feed(frame); err != nil {
			_ = session.Discard()
			return engine.Result{}, err
		}
	}
	log.Debugf("Batch: fed %d frames (%v of %s audio)", len(frames), pcm.Duration(), pcm.Format)
	return session.Finish(opts.NumResults)
}

// TranscribeFile reads and decodes path, then transcribes it.
func TranscribeFile(ctx context.Context, model engine.Model, path string, opts BatchOptions) (engine.Result, error) {
	pcm, err := audio.ReadFile(path)
	if err != nil {
		return engine.Result{}, err
	}
	return Transcribe(ctx, model, pcm, opts)
}

// TranscribeDir transcribes every supported file directly inside dir, in
// name order. Per-file failures are reported in the results; the returned
// error is set only when dir cannot be read or ctx ends.
func TranscribeDir(ctx context.Context, model engine.Model, dir string, opts BatchOptions) ([]FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "recognition.transcribe_dir", "read directory "+dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if p := filepath.Join(dir, entry.Name()); opts.accepts(p) {
			paths = append(paths, p)
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := TranscribeFile(gctx, model, path, opts)
			results[i] = FileResult{Path: path, Result: res, Err: err}
			if err != nil {
				logging.Warnf("Batch: %s: %v", path, err)
			} else {
				logging.Infof("Batch: %s: %q", path, res.Text)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
