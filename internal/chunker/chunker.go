// Package chunker turns raw CV text into an ordered sequence of labeled
// sections via a single language-model call with a strict output contract.
// Validation is enforced in code, never assumed from the model; any failure
// degrades to one catch-all section instead of dropping the document.
package chunker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/domain"
	"github.com/cvlens/cvlens/internal/llmjson"
)

// Result is the outcome of structuring one document. Degraded marks the
// fallback path: one section labeled Other spanning the whole text.
type Result struct {
	Sections      []domain.Section
	CandidateName string
	Degraded      bool
}

// Chunker is a stateless text → section-sequence transform with a defined
// degraded path.
type Chunker struct {
	completer     domain.Completer
	timeout       time.Duration
	fallbackTotal prometheus.Counter
	logger        *zap.Logger
}

// New creates a structural chunker. fallbackTotal may be nil.
func New(completer domain.Completer, timeout time.Duration, fallbackTotal prometheus.Counter, logger *zap.Logger) *Chunker {
	return &Chunker{
		completer:     completer,
		timeout:       timeout,
		fallbackTotal: fallbackTotal,
		logger:        logger,
	}
}

// Chunk structures rawText into labeled sections. The model call is retried
// at most once on transport error or empty response; a response that parses
// but fails the reconstruction check goes straight to the fallback, since
// retrying a systematic mismatch is unlikely to help. User cancellation is
// returned as an error, never converted into a degraded result.
func (c *Chunker) Chunk(ctx context.Context, rawText, nameHint string) (Result, error) {
	prompt := buildPrompt(rawText, nameHint)

	raw, err := c.completeWithRetry(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("chunking cancelled: %w", ctx.Err())
		}
		c.logger.Warn("Structural chunking degraded: model call failed", zap.Error(err))
		return c.fallback(rawText, domain.CandidateUnknown), nil
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		c.logger.Warn("Structural chunking degraded: unparseable response", zap.Error(err))
		return c.fallback(rawText, domain.CandidateUnknown), nil
	}

	sections := buildSections(parsed.Sections)
	if len(sections) == 0 {
		c.logger.Warn("Structural chunking degraded: no usable sections")
		return c.fallback(rawText, parsed.CandidateName), nil
	}

	if !reconstructs(rawText, sections) {
		c.logger.Warn("Structural chunking degraded: reconstruction check failed",
			zap.Int("sections", len(sections)))
		return c.fallback(rawText, parsed.CandidateName), nil
	}

	name := strings.TrimSpace(parsed.CandidateName)
	if name == "" {
		name = domain.CandidateUnknown
	}

	return Result{Sections: sections, CandidateName: name}, nil
}

func (c *Chunker) completeWithRetry(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.completer.Complete(callCtx, systemInstruction, prompt)
	if err == nil && strings.TrimSpace(raw) != "" {
		return raw, nil
	}
	if ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return "", err
	}

	// One retry on transport error or empty response.
	retryCtx, cancelRetry := context.WithTimeout(ctx, c.timeout)
	defer cancelRetry()

	raw, retryErr := c.completer.Complete(retryCtx, systemInstruction, prompt)
	if retryErr != nil {
		return "", retryErr
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("empty model response after retry")
	}
	return raw, nil
}

func (c *Chunker) fallback(rawText, candidateName string) Result {
	if c.fallbackTotal != nil {
		c.fallbackTotal.Inc()
	}
	name := strings.TrimSpace(candidateName)
	if name == "" {
		name = domain.CandidateUnknown
	}
	return Result{
		Sections: []domain.Section{{
			Label:      domain.LabelOther,
			OrderIndex: 0,
			Text:       rawText,
		}},
		CandidateName: name,
		Degraded:      true,
	}
}

// --- Response validation ---

type rawPayload struct {
	CandidateName string       `json:"candidate_name"`
	Sections      []rawSection `json:"sections"`
}

type rawSection struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// parseResponse validates the model output against the fixed schema.
// The response is untyped payload until it passes this gate.
func parseResponse(raw string) (rawPayload, error) {
	cleaned := llmjson.Extract(raw)

	var payload rawPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return rawPayload{}, fmt.Errorf("parse chunking response: %w", err)
	}
	if len(payload.Sections) == 0 {
		return rawPayload{}, errors.New("chunking response has no sections")
	}
	return payload, nil
}

// buildSections maps raw records onto domain sections. Records with unknown
// labels are remapped to Other rather than dropped: every character of
// source text must end up in some section. Empty-text records are skipped.
func buildSections(raw []rawSection) []domain.Section {
	sections := make([]domain.Section, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		sections = append(sections, domain.Section{
			Label:      domain.NormalizeLabel(r.Label),
			OrderIndex: len(sections),
			Text:       r.Text,
		})
	}
	return sections
}

// reconstructs checks the partition invariant: section texts concatenated in
// order must equal the input modulo whitespace.
func reconstructs(rawText string, sections []domain.Section) bool {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.Text)
	}
	return stripWhitespace(b.String()) == stripWhitespace(rawText)
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
