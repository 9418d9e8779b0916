package http

import (
	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/flow"
)

// StartSessionResponse is returned by POST /v1/sessions.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

// MessageRequest is the body for POST /v1/sessions/:id/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// SelectCardRequest is the body for card selection on either surface.
type SelectCardRequest struct {
	CardID string `json:"card_id"`
}

// SessionResponse is the text-surface session snapshot.
type SessionResponse struct {
	SessionID string             `json:"session_id"`
	Phase     string             `json:"phase"`
	Intention string             `json:"intention,omitempty"`
	Topic     string             `json:"topic,omitempty"`
	Messages  []flow.Message     `json:"messages"`
	Spread    []PositionResponse `json:"spread,omitempty"`
	Drawn     []CardResponse     `json:"drawn,omitempty"`
	DeckLeft  int                `json:"deck_remaining"`
}

type PositionResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Role  string `json:"role"`
}

type CardResponse struct {
	CardID         string             `json:"card_id"`
	Name           string             `json:"name"`
	Orientation    domain.Orientation `json:"orientation"`
	Position       int                `json:"position"`
	PositionLabel  string             `json:"position_label"`
	PositionRole   string             `json:"position_role"`
	Interpretation string             `json:"interpretation,omitempty"`
}

// VoiceSessionResponse is the voice-surface snapshot.
type VoiceSessionResponse struct {
	SessionID   string           `json:"session_id"`
	ActiveAgent string           `json:"active_agent"`
	Ritual      bool             `json:"ritual_active"`
	Picking     *PickingResponse `json:"picking,omitempty"`
	PendingDraw *PendingDrawResp `json:"pending_draw,omitempty"`
	Displayed   *CardResponse    `json:"displayed_card,omitempty"`
	Drawn       []CardResponse   `json:"drawn,omitempty"`
}

// PickingResponse is the batch-draw cursor: the position being picked plus
// its index and the spread size, so a picker can render "card N of M".
type PickingResponse struct {
	PositionResponse
	Index int `json:"index"`
	Total int `json:"total"`
}

type PendingDrawResp struct {
	PositionLabel string `json:"position_label"`
	PositionRole  string `json:"position_role"`
	CardNumber    int    `json:"card_number"`
	TotalCards    int    `json:"total_cards"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toCardResponses(cards []domain.DrawnCard) []CardResponse {
	out := make([]CardResponse, len(cards))
	for i, dc := range cards {
		out[i] = CardResponse{
			CardID:         dc.CardID,
			Name:           dc.Name,
			Orientation:    dc.Orientation(),
			Position:       dc.Position,
			PositionLabel:  dc.PositionLabel,
			PositionRole:   dc.PositionRole,
			Interpretation: dc.Interpretation,
		}
	}
	return out
}
