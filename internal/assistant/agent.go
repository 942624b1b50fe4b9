package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"b2b-analyst/internal/charts"
	"b2b-analyst/internal/classifier"
	"b2b-analyst/internal/models"
	"b2b-analyst/internal/observability"
)

const (
	defaultTimeout = 90 * time.Second
	fallbackFormat = "죄송합니다. 오류가 발생했습니다: %v"
)

var ErrEmptyMessage = errors.New("message is empty")

type Summarizer interface {
	SalesSummary() models.SalesSummary
}

type Analyzer interface {
	Analyze(text string) (models.AnalysisResult, classifier.Query)
}

type Options struct {
	HistoryTurns int
	Timeout      time.Duration
	MaxSessions  int
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// ChatResult is one answered turn. Visualizations is empty when the model
// call failed.
type ChatResult struct {
	Response       string                 `json:"response"`
	AnalysisData   models.AnalysisResult  `json:"analysis_data"`
	Visualizations []charts.Visualization `json:"visualizations"`
	SessionID      string                 `json:"session_id"`
}

type Agent struct {
	summary      Summarizer
	analyzer     Analyzer
	provider     Provider
	sessions     *Sessions
	historyTurns int
	timeout      time.Duration
	metrics      *observability.Metrics
	logger       *slog.Logger
}

func NewAgent(summary Summarizer, analyzer Analyzer, provider Provider, opts Options) *Agent {
	if opts.HistoryTurns < 0 {
		opts.HistoryTurns = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		summary:      summary,
		analyzer:     analyzer,
		provider:     provider,
		sessions:     NewSessions(opts.HistoryTurns, opts.MaxSessions),
		historyTurns: opts.HistoryTurns,
		timeout:      opts.Timeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With("component", "assistant"),
	}
}

func (a *Agent) Provider() string { return a.provider.Name() }

// Chat answers message within sessionID. An empty sessionID starts a new
// session. A failed model call is not an error: the result carries an
// apology and the analysis, and the history is left as it was.
func (a *Agent) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := observability.StartSpan(ctx, "assistant.chat",
		attribute.String("llm.provider", a.provider.Name()))
	defer span.End()

	id, history := a.sessions.Get(sessionID)
	span.SetAttributes(attribute.String("session.id", id))

	analysis, q := a.analyzer.Analyze(message)
	span.SetAttributes(
		attribute.StringSlice("query.codes", q.Codes),
		attribute.Int("analysis.results", len(analysis)),
	)

	visualizations := charts.Visualize(analysis)
	titles := make([]string, len(visualizations))
	for i, v := range visualizations {
		titles[i] = v.Title
	}

	prompt, err := UserPrompt(message, analysis, titles)
	if err != nil {
		observability.SetError(span, err)
		return nil, err
	}
	req := Request{
		System:  SystemPrompt(a.summary.SalesSummary()),
		History: history.Recent(a.historyTurns),
		Prompt:  prompt,
	}

	start := time.Now()
	text, err := a.generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		observability.SetError(span, err)
		a.metrics.ObserveChat(a.provider.Name(), "error", elapsed)
		a.logger.ErrorContext(ctx, "llm generate failed",
			"provider", a.provider.Name(),
			"session_id", id,
			"duration", elapsed,
			"error", err)
		return &ChatResult{
			Response:       fmt.Sprintf(fallbackFormat, err),
			AnalysisData:   analysis,
			Visualizations: []charts.Visualization{},
			SessionID:      id,
		}, nil
	}

	now := time.Now().UTC()
	history.Append(
		models.Turn{Role: models.RoleUser, Content: message, CreatedAt: now},
		models.Turn{Role: models.RoleAssistant, Content: text, CreatedAt: now},
	)
	a.metrics.ObserveChat(a.provider.Name(), "success", elapsed)
	a.logger.InfoContext(ctx, "chat turn complete",
		"session_id", id,
		"results", len(analysis),
		"visualizations", len(visualizations),
		"duration", elapsed)

	return &ChatResult{
		Response:       text,
		AnalysisData:   analysis,
		Visualizations: visualizations,
		SessionID:      id,
	}, nil
}

func (a *Agent) generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "llm.generate",
		attribute.String("llm.provider", a.provider.Name()),
		attribute.Int("llm.history_turns", len(req.History)))
	defer span.End()

	text, err := a.provider.Generate(ctx, req)
	observability.SetError(span, err)
	return text, err
}

// Reset clears one session's history. It reports whether the session existed.
func (a *Agent) Reset(sessionID string) bool {
	return a.sessions.Reset(sessionID)
}
