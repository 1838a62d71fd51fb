// Package scorer turns a rendered page digest into a GEO audit report by
// asking an Anthropic model to score it against a fixed rubric.
package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siteaudit/internal/extract"
	"github.com/sells-group/siteaudit/internal/model"
	"github.com/sells-group/siteaudit/internal/resilience"
	"github.com/sells-group/siteaudit/pkg/anthropic"
)

// Model tiers. The tag stored alongside a cached audit records which tier
// produced it.
const (
	ModelTagFree = "free"
	ModelTagPro  = "pro"
)

// ErrOracleMalformed indicates the model response could not be parsed into a
// report even after repair.
var ErrOracleMalformed = eris.New("scorer: malformed oracle response")

const systemPrompt = `You are a Generative Engine Optimization (GEO) auditor.
You receive a structured digest of a single web page, and when available a
screenshot of its viewport. Score how well the page would perform as source
material for AI answer engines.

Score four axes from 0 to 100:
- content_clarity: is the copy direct, specific, and self-contained?
- structured_data: do headings, tables, lists, and FAQs expose machine-readable structure?
- answer_readiness: could an answer engine quote this page verbatim to answer a question?
- trust_authority: does the page signal a credible, identifiable operator?

Respond with ONLY a JSON object, no prose and no markdown fences:
{
  "summary": "<2-3 sentence overall assessment>",
  "geo_score": <0-100 weighted overall score>,
  "scores": {"content_clarity": <int>, "structured_data": <int>, "answer_readiness": <int>, "trust_authority": <int>},
  "strengths": ["<what the page does well>"],
  "issues": [{"title": "", "description": "", "impact": "high|medium|low", "category": "", "suggestion": ""}],
  "impression": "<one sentence on the visual first impression, empty if no screenshot>"
}`

const userPromptFormat = `Audit the following page. Respond in %s.

%s`

// Config holds the model IDs and call parameters for the oracle.
type Config struct {
	FreeModel string
	ProModel  string
	MaxTokens int64
	Deadline  time.Duration
	Retry     resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	if c.Deadline <= 0 {
		c.Deadline = 120 * time.Second
	}
	return c
}

// Scorer calls the Anthropic API and parses the result. Calls go through a
// retry loop for transient failures and a circuit breaker so a degraded API
// fails fast instead of stacking up 120-second timeouts.
type Scorer struct {
	client  anthropic.Client
	cfg     Config
	breaker *resilience.CircuitBreaker
}

// New creates a Scorer around an Anthropic client.
func New(client anthropic.Client, cfg Config) *Scorer {
	cbCfg := resilience.DefaultCircuitBreakerConfig()
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("oracle circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Scorer{
		client:  client,
		cfg:     cfg.withDefaults(),
		breaker: resilience.NewCircuitBreaker(cbCfg),
	}
}

// ModelFor maps a model tag to the configured model ID.
func (s *Scorer) ModelFor(tag string) string {
	if tag == ModelTagPro {
		return s.cfg.ProModel
	}
	return s.cfg.FreeModel
}

// Score audits a digest with the model tier named by modelTag. The report
// language follows the language parameter. The digest's screenshot, when
// present, is attached as an image block.
func (s *Scorer) Score(ctx context.Context, digest *model.PageDigest, language, modelTag string) (*model.AuditReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	modelID := s.ModelFor(modelTag)
	temp := 0.2
	req := anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   s.cfg.MaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt),
		Temperature: &temp,
		Messages: []anthropic.Message{
			{
				Role:      "user",
				Content:   fmt.Sprintf(userPromptFormat, languageName(language), extract.RenderMarkdown(digest)),
				ImageJPEG: digest.Screenshot,
			},
		},
	}

	retryCfg := s.cfg.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger("anthropic", "score")
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "scorer: oracle call")
	}

	resp.Usage.LogCost(modelID, "audit")

	report, err := parseReport(resp.Text())
	if err != nil {
		zap.L().Warn("scorer: unparseable oracle response",
			zap.String("model", modelID),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, err
	}
	return report, nil
}

// parseReport repairs and unmarshals the oracle text, then normalizes the
// scores into range.
func parseReport(text string) (*model.AuditReport, error) {
	var report model.AuditReport
	if err := json.Unmarshal([]byte(Repair(text)), &report); err != nil {
		return nil, eris.Wrap(ErrOracleMalformed, err.Error())
	}
	if report.Summary == "" && report.GeoScore == 0 && report.Scores == (model.AuditScores{}) {
		return nil, eris.Wrap(ErrOracleMalformed, "empty report")
	}

	report.Scores.ContentClarity = clamp(report.Scores.ContentClarity)
	report.Scores.StructuredData = clamp(report.Scores.StructuredData)
	report.Scores.AnswerReadiness = clamp(report.Scores.AnswerReadiness)
	report.Scores.TrustAuthority = clamp(report.Scores.TrustAuthority)

	// Missing overall score: fall back to the mean of the axes.
	if report.GeoScore == 0 {
		report.GeoScore = (report.Scores.ContentClarity + report.Scores.StructuredData +
			report.Scores.AnswerReadiness + report.Scores.TrustAuthority) / 4
	}
	report.GeoScore = clamp(report.GeoScore)
	return &report, nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// languageName expands common ISO codes so the instruction reads naturally.
func languageName(code string) string {
	switch code {
	case "", "en":
		return "English"
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	case "pt":
		return "Portuguese"
	case "it":
		return "Italian"
	case "nl":
		return "Dutch"
	case "ja":
		return "Japanese"
	default:
		return code
	}
}
