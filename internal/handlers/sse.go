package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/starfederation/datastar-go/datastar"

	"b2b-analyst/internal/charts"
	"b2b-analyst/internal/models"
	"b2b-analyst/internal/services"
	"b2b-analyst/internal/ui/templates"
)

const (
	pendingText      = "분석 중입니다..."
	emptyMessageText = "메시지를 입력해주세요."
)

// ChatSignals are the datastar signals the chat page sends.
type ChatSignals struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResultSignals struct {
	Message        string                 `json:"message"`
	SessionID      string                 `json:"sessionId"`
	Pending        bool                   `json:"pending"`
	Visualizations []charts.Visualization `json:"visualizations"`
}

type SSEHandlers struct {
	analytics *services.Analytics
	agent     Chatter
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, agent Chatter, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		agent:     agent,
		logger:    logger,
	}
}

// HandleChat streams one chat turn: the user's bubble and a pending answer
// first, then the signals and the answer once the model replies.
func (h *SSEHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var signals ChatSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read chat signals", "error", err)
		http.Error(w, "invalid signals", http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)

	message := strings.TrimSpace(signals.Message)
	if message == "" {
		h.patch(sse, templates.Error(emptyMessageText))
		return
	}

	turnID := "turn-" + uuid.NewString()
	h.patch(sse, templates.Error(""))
	h.patch(sse, templates.Message(turnID+"-q", models.RoleUser, message, false),
		datastar.WithSelectorID(templates.MessagesID), datastar.WithModeAppend())
	h.patch(sse, templates.Message(turnID, models.RoleAssistant, pendingText, true),
		datastar.WithSelectorID(templates.MessagesID), datastar.WithModeAppend())
	if err := sse.MarshalAndPatchSignals(map[string]any{"message": "", "pending": true}); err != nil {
		h.logger.Error("patch pending signals", "error", err)
		return
	}

	result, err := h.agent.Chat(r.Context(), signals.SessionID, message)
	if err != nil {
		h.logger.Error("chat", "error", err)
		h.patch(sse, templates.Message(turnID, models.RoleAssistant, err.Error(), false))
		_ = sse.MarshalAndPatchSignals(map[string]any{"pending": false})
		return
	}

	if err := sse.MarshalAndPatchSignals(chatResultSignals{
		SessionID:      result.SessionID,
		Visualizations: result.Visualizations,
	}); err != nil {
		h.logger.Error("patch chat signals", "error", err)
		return
	}
	h.patch(sse, templates.Message(turnID, models.RoleAssistant, result.Response, false))
}

func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	summary := h.analytics.SalesSummary()
	if err := sse.MarshalAndPatchSignals(map[string]any{"summary": summary}); err != nil {
		h.logger.Error("patch summary signals", "error", err)
		return
	}
	h.patch(sse, templates.Summary(summary))
}

func (h *SSEHandlers) patch(sse *datastar.ServerSentEventGenerator, c templ.Component, opts ...datastar.PatchElementOption) {
	if err := sse.PatchElementTempl(c, opts...); err != nil {
		h.logger.Error("patch element", "error", err)
	}
}
