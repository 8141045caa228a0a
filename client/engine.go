package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrNoEngines = errors.New("no OCR engines configured")

// OCRResult is the text an engine read from one image.
type OCRResult struct {
	Text       string
	Confidence float64 // 0-100, 0 when the engine does not report it
	Engine     string
}

// OCREngine turns an image into text.
type OCREngine interface {
	Name() string
	ExtractText(ctx context.Context, image []byte, lang string) (OCRResult, error)
}

// EngineChain tries OCR engines in order and stops at the first one that
// reads enough text.
type EngineChain struct {
	engines  []OCREngine
	minChars int
	log      zerolog.Logger
}

// NewEngineChain builds a chain. minChars is the number of non-space
// characters an engine must return to be accepted.
func NewEngineChain(log zerolog.Logger, minChars int, engines ...OCREngine) *EngineChain {
	return &EngineChain{
		engines:  engines,
		minChars: minChars,
		log:      log,
	}
}

// Engines returns the engine names in the order they are tried.
func (c *EngineChain) Engines() []string {
	names := make([]string, 0, len(c.engines))
	for _, e := range c.engines {
		names = append(names, e.Name())
	}
	return names
}

// ExtractText runs the chain. If no engine reaches minChars, the longest text
// any engine returned is used. It only fails when every engine failed.
func (c *EngineChain) ExtractText(ctx context.Context, image []byte, lang string) (OCRResult, error) {
	if len(c.engines) == 0 {
		return OCRResult{}, ErrNoEngines
	}

	var best OCRResult
	var errs []error
	succeeded := false

	for _, engine := range c.engines {
		if err := ctx.Err(); err != nil {
			return OCRResult{}, err
		}

		res, err := engine.ExtractText(ctx, image, lang)
		if err != nil {
			c.log.Warn().Err(err).Str("engine", engine.Name()).Msg("OCR engine failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", engine.Name(), err))
			continue
		}
		res.Engine = engine.Name()

		chars := countNonSpace(res.Text)
		if chars >= c.minChars {
			c.log.Debug().Str("engine", res.Engine).Int("chars", chars).Msg("OCR engine succeeded")
			return res, nil
		}

		c.log.Warn().Str("engine", engine.Name()).Int("chars", chars).Msg("OCR engine returned too little text, trying next")
		if !succeeded || chars > countNonSpace(best.Text) {
			best = res
		}
		succeeded = true
	}

	if succeeded {
		return best, nil
	}
	return OCRResult{}, fmt.Errorf("all OCR engines failed: %w", errors.Join(errs...))
}

func countNonSpace(s string) int {
	return len(strings.Join(strings.Fields(s), ""))
}
