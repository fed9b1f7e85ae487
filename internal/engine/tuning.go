package engine

import (
	"fmt"
	"sort"
)

// Options tunes a loaded model. Zero values leave the engine defaults.
type Options struct {
	BeamWidth  int
	ScorerPath string
	// Alpha and Beta are applied only when both are set and a scorer is
	// enabled.
	Alpha    *float32
	Beta     *float32
	HotWords map[string]float32
}

func (o Options) empty() bool {
	return o.BeamWidth == 0 && o.ScorerPath == "" && o.Alpha == nil && o.Beta == nil && len(o.HotWords) == 0
}

// Configure applies opts to model. Models that do not implement Tuner are
// accepted only with empty options.
func Configure(model Model, opts Options) error {
	if opts.empty() {
		return nil
	}
	tuner, ok := model.(Tuner)
	if !ok {
		return fmt.Errorf("model %T does not support tuning", model)
	}

	if opts.BeamWidth > 0 {
		if err := tuner.SetBeamWidth(opts.BeamWidth); err != nil {
			return fmt.Errorf("set beam width %d: %w", opts.BeamWidth, err)
		}
	}
	if opts.ScorerPath != "" {
		if err := tuner.EnableExternalScorer(opts.ScorerPath); err != nil {
			return fmt.Errorf("enable scorer %s: %w", opts.ScorerPath, err)
		}
		if opts.Alpha != nil && opts.Beta != nil {
			if err := tuner.SetScorerAlphaBeta(*opts.Alpha, *opts.Beta); err != nil {
				return fmt.Errorf("set scorer alpha/beta: %w", err)
			}
		}
	} else if opts.Alpha != nil && opts.Beta != nil {
		return NewError(CodeScorerNotEnabled)
	}

	if len(opts.HotWords) > 0 {
		if err := tuner.ClearHotWords(); err != nil {
			return fmt.Errorf("clear hot words: %w", err)
		}
		words := make([]string, 0, len(opts.HotWords))
		for w := range opts.HotWords {
			words = append(words, w)
		}
		sort.Strings(words)
		for _, w := range words {
			if err := tuner.AddHotWord(w, opts.HotWords[w]); err != nil {
				return fmt.Errorf("add hot word %q: %w", w, err)
			}
		}
	}
	return nil
}
