package ports

import (
	"context"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
)

// Handle is an opaque prior-turn reference returned by every oracle call and
// passed to the next one to preserve conversational context.
type Handle string

// IntentAssessment is the structured result of assessing a user's intention.
type IntentAssessment struct {
	Clear            bool   `json:"clear"`
	Summary          string `json:"summary,omitempty"`
	Topic            string `json:"topic,omitempty"`
	Timeframe        string `json:"timeframe,omitempty"`
	AssistantMessage string `json:"assistant_message"`
	Handle           Handle `json:"-"`
}

// SpreadResult is a generated spread for an intention.
type SpreadResult struct {
	Positions []domain.SpreadPosition `json:"positions"`
	Handle    Handle                  `json:"-"`
}

// CardContext is a drawn card flattened for interpretation input.
type CardContext struct {
	CardID        string   `json:"card_id"`
	Name          string   `json:"name"`
	Reversed      bool     `json:"reversed"`
	Position      int      `json:"position"`
	PositionLabel string   `json:"position_label"`
	PositionRole  string   `json:"position_role"`
	Keywords      []string `json:"keywords,omitempty"`
	Meaning       string   `json:"meaning,omitempty"`
}

// InterpretedCard pairs a card id with its generated interpretation.
type InterpretedCard struct {
	CardID         string `json:"card_id"`
	Interpretation string `json:"interpretation"`
}

// Reading is the generated interpretation for a full spread.
type Reading struct {
	Cards     []InterpretedCard `json:"cards"`
	Synthesis string            `json:"synthesis"`
	Handle    Handle            `json:"-"`
}

// Clarification is the result of a follow-up exchange. When IsFinalAnswer is
// false, RequestedPositions names 1-3 additional cards to draw before a
// second call completes the answer.
type Clarification struct {
	Synthesis          string                  `json:"synthesis"`
	IsFinalAnswer      bool                    `json:"is_final_answer"`
	Cards              []InterpretedCard       `json:"cards,omitempty"`
	RequestedPositions []domain.SpreadPosition `json:"requested_positions,omitempty"`
	Handle             Handle                  `json:"-"`
}

// Oracle is the external structured-content capability the session core
// consumes. Implementations call a language model; the core never sees
// prompt wording, only these shapes.
type Oracle interface {
	AssessIntent(ctx context.Context, userMessage string, prior Handle) (IntentAssessment, error)
	GenerateSpread(ctx context.Context, intentSummary, timeframe string) (SpreadResult, error)
	GenerateReading(ctx context.Context, intentSummary string, cards []CardContext) (Reading, error)
	HandleClarification(ctx context.Context, question string, newCards []CardContext, prior Handle) (Clarification, error)
}
