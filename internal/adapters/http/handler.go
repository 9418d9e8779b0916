package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/flow"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/voice"
)

// Handler wires the session managers to the HTTP boundary. The endpoints
// are deliberately thin: every decision lives in the session core.
type Handler struct {
	text  *flow.Manager
	voice *voice.Manager
}

func NewHandler(text *flow.Manager, voiceMgr *voice.Manager) *Handler {
	return &Handler{text: text, voice: voiceMgr}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	e.POST("/v1/sessions", h.StartSession)
	e.GET("/v1/sessions/:id", h.GetSession)
	e.POST("/v1/sessions/:id/messages", h.PostMessage)
	e.POST("/v1/sessions/:id/ritual/complete", h.CompleteRitual)
	e.POST("/v1/sessions/:id/shuffle/complete", h.FinishShuffle)
	e.POST("/v1/sessions/:id/cards", h.SelectCard)
	e.POST("/v1/sessions/:id/reveal/confirm", h.ConfirmReveal)
	e.POST("/v1/sessions/:id/reading/retry", h.RetryReading)
	e.DELETE("/v1/sessions/:id", h.EndSession)

	e.POST("/v1/voice/sessions", h.StartVoice)
	e.GET("/v1/voice/sessions/:id", h.GetVoice)
	e.POST("/v1/voice/sessions/:id/ritual/complete", h.CompleteVoiceRitual)
	e.POST("/v1/voice/sessions/:id/cards", h.SelectVoiceCard)
	e.POST("/v1/voice/sessions/:id/draws/resolve", h.ResolveVoiceDraw)
	e.DELETE("/v1/voice/sessions/:id", h.EndVoice)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) StartSession(c echo.Context) error {
	f, err := h.text.Start(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	snap := f.Snapshot()
	return c.JSON(http.StatusCreated, StartSessionResponse{
		SessionID: snap.SessionID,
		Phase:     snap.Phase.String(),
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	f, err := h.text.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(f))
}

func (h *Handler) PostMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
	}
	if len(req.Text) > 2000 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text must be at most 2000 characters"})
	}
	f, err := h.text.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	if err := f.HandleMessage(c.Request().Context(), req.Text); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(f))
}

func (h *Handler) CompleteRitual(c echo.Context) error {
	return h.advance(c, func(f *flow.Flow, c echo.Context) error {
		return f.CompleteRitual(c.Request().Context())
	})
}

func (h *Handler) FinishShuffle(c echo.Context) error {
	return h.advance(c, func(f *flow.Flow, c echo.Context) error {
		return f.FinishShuffle(c.Request().Context())
	})
}

func (h *Handler) ConfirmReveal(c echo.Context) error {
	return h.advance(c, func(f *flow.Flow, c echo.Context) error {
		return f.ConfirmReveal(c.Request().Context())
	})
}

func (h *Handler) RetryReading(c echo.Context) error {
	return h.advance(c, func(f *flow.Flow, c echo.Context) error {
		return f.RetryReading(c.Request().Context())
	})
}

func (h *Handler) advance(c echo.Context, op func(*flow.Flow, echo.Context) error) error {
	f, err := h.text.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	if err := op(f, c); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(f))
}

func (h *Handler) SelectCard(c echo.Context) error {
	var req SelectCardRequest
	if err := c.Bind(&req); err != nil || req.CardID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "card_id is required"})
	}
	f, err := h.text.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	if err := f.SelectCard(c.Request().Context(), req.CardID); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(f))
}

func (h *Handler) EndSession(c echo.Context) error {
	h.text.End(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) StartVoice(c echo.Context) error {
	id, o, err := h.voice.Start(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, toVoiceResponse(id, o))
}

func (h *Handler) GetVoice(c echo.Context) error {
	o, err := h.voice.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toVoiceResponse(c.Param("id"), o))
}

func (h *Handler) CompleteVoiceRitual(c echo.Context) error {
	o, err := h.voice.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	o.CompleteRitual()
	return c.JSON(http.StatusOK, toVoiceResponse(c.Param("id"), o))
}

func (h *Handler) SelectVoiceCard(c echo.Context) error {
	var req SelectCardRequest
	if err := c.Bind(&req); err != nil || req.CardID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "card_id is required"})
	}
	o, err := h.voice.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	if err := o.SelectCard(c.Request().Context(), req.CardID); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toVoiceResponse(c.Param("id"), o))
}

func (h *Handler) ResolveVoiceDraw(c echo.Context) error {
	var req SelectCardRequest
	if err := c.Bind(&req); err != nil || req.CardID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "card_id is required"})
	}
	o, err := h.voice.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	if err := o.ResolveDraw(req.CardID); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, toVoiceResponse(c.Param("id"), o))
}

func (h *Handler) EndVoice(c echo.Context) error {
	h.voice.End(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func toSessionResponse(f *flow.Flow) SessionResponse {
	snap := f.Snapshot()
	resp := SessionResponse{
		SessionID: snap.SessionID,
		Phase:     snap.Phase.String(),
		Intention: snap.Intention,
		Topic:     snap.Topic,
		Messages:  snap.Messages,
		Drawn:     toCardResponses(snap.Drawn),
		DeckLeft:  len(snap.Deck),
	}
	if snap.Spread != nil {
		for _, p := range snap.Spread.Positions {
			resp.Spread = append(resp.Spread, PositionResponse{Key: p.Key, Label: p.Label, Role: p.Role})
		}
	}
	return resp
}

func toVoiceResponse(id string, o *voice.Orchestrator) VoiceSessionResponse {
	resp := VoiceSessionResponse{
		SessionID:   id,
		ActiveAgent: string(o.ActiveAgent()),
		Ritual:      o.RitualActive(),
		Drawn:       toCardResponses(o.DrawnCards()),
	}
	if pos, index, ok := o.CurrentPosition(); ok {
		resp.Picking = &PickingResponse{
			PositionResponse: PositionResponse{Key: pos.Key, Label: pos.Label, Role: pos.Role},
			Index:            index,
			Total:            o.TotalPositions(),
		}
	}
	if req, ok := o.PendingDraw(); ok {
		resp.PendingDraw = &PendingDrawResp{
			PositionLabel: req.PositionLabel,
			PositionRole:  req.PositionRole,
			CardNumber:    req.CardNumber,
			TotalCards:    req.TotalCards,
		}
	}
	if card, ok := o.DisplayedCard(); ok {
		orientation := domain.Upright
		if card.Reversed {
			orientation = domain.Reversed
		}
		resp.Displayed = &CardResponse{CardID: card.CardID, Name: card.Name, Orientation: orientation}
	}
	return resp
}

func mapError(c echo.Context, err error) error {
	requestID, _ := c.Get("request_id").(string)

	switch {
	case errors.Is(err, flow.ErrSessionNotFound), errors.Is(err, voice.ErrVoiceSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, flow.ErrWrongPhase), errors.Is(err, flow.ErrNoSession),
		errors.Is(err, voice.ErrNoPendingDraw), errors.Is(err, voice.ErrNoActiveSpread):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnknownCard), errors.Is(err, domain.ErrCardNotInDeck),
		errors.Is(err, domain.ErrSpreadSize):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUpstreamLLM), errors.Is(err, domain.ErrInvalidLLMJSON):
		slog.Error("upstream LLM failure", "request_id", requestID, "error", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream LLM failure"})
	default:
		slog.Error("internal error", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
