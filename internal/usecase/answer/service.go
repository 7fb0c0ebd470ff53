// Package answer turns retrieved CV context into grounded answers and job-fit
// reports. Two modes share one model client: free-form RAG answers over
// retrieved sections, and a structured evaluation of a CV against a job
// description.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cvlens/cvlens/internal/domain"
	"github.com/cvlens/cvlens/internal/llmjson"
)

// Source identifies one retrieved section that grounded an answer.
type Source struct {
	CandidateName string  `json:"candidate_name"`
	Label         string  `json:"section_label"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
}

// Response is a grounded answer with its supporting sections. NoData marks
// the deterministic no-information path: nothing relevant was retrieved and
// no model call was made.
type Response struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
	NoData  bool     `json:"no_data"`
}

// Report is a structured job-fit evaluation.
type Report struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	MissingKeywords []string `json:"missing_keywords"`
	Score           int      `json:"score"`
	Justification   string   `json:"justification"`
}

// Service synthesizes answers and reports from a chat model.
type Service struct {
	completer domain.Completer
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an answer service.
func New(completer domain.Completer, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{completer: completer, timeout: timeout, logger: logger}
}

// Generate produces a grounded answer for a question over retrieved sections.
// Empty retrieval and injection attempts both short-circuit without a model
// call; neither is an error.
func (s *Service) Generate(ctx context.Context, question string, retrieval domain.RetrievalResult) (Response, error) {
	if retrieval.IsEmpty() {
		return Response{Text: NoInformationAnswer, NoData: true}, nil
	}

	if containsInjection(question) {
		s.logger.Warn("Question rejected by injection screening")
		return Response{Text: InjectionRefusal, Sources: sourcesFrom(retrieval.Sections)}, nil
	}

	prompt := buildRAGPrompt(question, retrieval.Sections)

	text, err := s.complete(ctx, ragSystemInstruction, prompt)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Text:    strings.TrimSpace(text),
		Sources: sourcesFrom(retrieval.Sections),
	}, nil
}

// Evaluate compares a CV against a job description and returns a structured
// report. The model's score is validated, never repaired: an out-of-range or
// non-numeric score fails the whole evaluation.
func (s *Service) Evaluate(ctx context.Context, cvText, jobDescription string) (Report, error) {
	prompt := buildEvalPrompt(cvText, jobDescription)

	text, err := s.complete(ctx, evalSystemInstruction, prompt)
	if err != nil {
		return Report{}, err
	}

	return parseReport(text)
}

// complete runs one bounded model call. Parent cancellation is surfaced
// as-is; everything else becomes a synthesis failure.
func (s *Service) complete(ctx context.Context, system, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.completer.Complete(cctx, system, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("synthesis cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}
	return text, nil
}

func sourcesFrom(sections []domain.RetrievedSection) []Source {
	out := make([]Source, len(sections))
	for i, sec := range sections {
		out[i] = Source{
			CandidateName: sec.CandidateName,
			Label:         string(sec.Label),
			Excerpt:       sec.Text,
			Score:         sec.Score,
		}
	}
	return out
}

// rawReport mirrors the model's JSON contract. Score stays raw so a
// non-numeric value fails score validation instead of JSON decoding.
type rawReport struct {
	Summary         string          `json:"summary"`
	Strengths       []string        `json:"strengths"`
	Weaknesses      []string        `json:"weaknesses"`
	MissingKeywords []string        `json:"missing_keywords"`
	Score           json.RawMessage `json:"score"`
	Justification   string          `json:"justification"`
}

func parseReport(text string) (Report, error) {
	var raw rawReport
	if err := json.Unmarshal([]byte(llmjson.Extract(text)), &raw); err != nil {
		return Report{}, fmt.Errorf("%w: unparseable report: %w", domain.ErrSynthesisFailed, err)
	}

	score, err := parseScore(raw.Score)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Summary:         raw.Summary,
		Strengths:       raw.Strengths,
		Weaknesses:      raw.Weaknesses,
		MissingKeywords: raw.MissingKeywords,
		Score:           score,
		Justification:   raw.Justification,
	}, nil
}

// parseScore validates the model's score strictly: it must be a JSON number
// within [0, 100]. A score of 150 or "N/A" means the model broke the
// contract, and a broken contract is a failed evaluation, not a value to
// clamp.
func parseScore(raw json.RawMessage) (int, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return 0, domain.NewScoreInvalid("<missing>")
	}

	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, domain.NewScoreInvalid(trimmed)
	}
	if f < 0 || f > 100 {
		return 0, domain.NewScoreInvalid(trimmed)
	}
	return int(f), nil
}
