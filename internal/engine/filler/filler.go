// Package filler places one logical field's value into the best matching
// control of a live page, falling back through ranked candidates.
package filler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/dictionary"
	"github.com/xkilldash9x/autoform/internal/engine/scoring"
)

// Outcome is the result of filling one logical field.
type Outcome struct {
	Field     string
	Succeeded bool
	Value     string
	Synonyms  dictionary.SynonymSet
	Attempts  []Attempt
}

// Report converts the outcome into its wire form.
func (o Outcome) Report() schemas.FieldReport {
	return schemas.FieldReport{OK: o.Succeeded, Value: o.Value, Synonyms: append([]string{}, o.Synonyms...)}
}

// Attempt records what happened to one candidate. Err is nil on success.
type Attempt struct {
	Address dom.Address
	Score   int
	Err     error
}

// Filler combines the dictionary and the scorer to fill fields on a page.
type Filler struct {
	dict   *dictionary.Dictionary
	scorer *scoring.Scorer
	cfg    config.FillerConfig
	logger *zap.Logger
}

// New creates a Filler. The dictionary is injected and never modified.
func New(dict *dictionary.Dictionary, scorer *scoring.Scorer, cfg config.FillerConfig, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		dict:   dict,
		scorer: scorer,
		cfg:    cfg,
		logger: logger.Named("filler"),
	}
}

// Fill snapshots the page, ranks candidates for the field and tries them in
// order until one accepts the value. Unmatched fields are reported through
// Outcome.Succeeded. The returned error is reserved for failures of the page
// itself (the snapshot could not be taken, or ctx ended).
func (f *Filler) Fill(ctx context.Context, page schemas.Page, field schemas.LogicalField) (Outcome, error) {
	outcome := Outcome{
		Field:    field.Name,
		Value:    field.Value,
		Synonyms: f.dict.Lookup(field.Name),
	}

	source, err := page.Snapshot(ctx)
	if err != nil {
		return outcome, fmt.Errorf("failed to snapshot page for field %q: %w", field.Name, err)
	}
	doc, err := dom.ParseSnapshot(source)
	if err != nil {
		return outcome, err
	}

	candidates := f.scorer.Score(doc, outcome.Synonyms)
	f.logger.Debug("Scored candidates.",
		zap.String("field", field.Name),
		zap.Int("candidates", len(candidates)))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		attemptErr := f.attempt(ctx, page, c, field.Value)
		outcome.Attempts = append(outcome.Attempts, Attempt{Address: c.Address, Score: c.Score, Err: attemptErr})
		if attemptErr == nil {
			outcome.Succeeded = true
			return outcome, nil
		}
		f.logger.Debug("Candidate attempt failed, trying next.",
			zap.String("field", field.Name),
			zap.String("address", c.Address.String()),
			zap.Error(attemptErr))
	}
	return outcome, nil
}

// attempt re-resolves the candidate on the live page and enters the value.
func (f *Filler) attempt(ctx context.Context, page schemas.Page, c scoring.Candidate, value string) error {
	attemptCtx := ctx
	if f.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.cfg.AttemptTimeout)
		defer cancel()
	}
	addr := c.Address.String()

	found, err := page.Resolve(attemptCtx, addr)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if !found {
		return dom.ErrNotFound
	}

	if c.IsSelect() {
		if err := page.SelectOption(attemptCtx, addr, value); err != nil {
			return fmt.Errorf("select: %w", err)
		}
		return nil
	}

	if err := page.Focus(attemptCtx, addr); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	if err := page.Clear(attemptCtx, addr); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := page.TypeText(attemptCtx, addr, value, f.cfg.KeyDelay); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

// Unresolved reports whether an attempt failed because its address no longer
// matched the live page.
func Unresolved(a Attempt) bool {
	return errors.Is(a.Err, dom.ErrNotFound)
}
