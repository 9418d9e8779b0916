package flow

import "fmt"

// Phase is the closed set of mutually exclusive reading phases. Exactly one
// is current at any time; transition sites type-switch over the full set so
// the compiler flags an unhandled phase.
type Phase interface {
	fmt.Stringer
	phase()
}

// Idle is the phase before a flow starts.
type Idle struct{}

func (Idle) phase()         {}
func (Idle) String() string { return "idle" }

// IntentCollecting gathers and assesses the user's intention.
type IntentCollecting struct{}

func (IntentCollecting) phase()         {}
func (IntentCollecting) String() string { return "intent_collecting" }

// RitualPreparing waits for the user-held ritual gesture to complete.
type RitualPreparing struct{}

func (RitualPreparing) phase()         {}
func (RitualPreparing) String() string { return "ritual_preparing" }

// Shuffling waits for the shuffle to finish before the first pick.
type Shuffling struct{}

func (Shuffling) phase()         {}
func (Shuffling) String() string { return "shuffling" }

// Picking awaits the user's card selection for one spread position.
type Picking struct {
	Position int
}

func (Picking) phase()           {}
func (p Picking) String() string { return fmt.Sprintf("picking(%d)", p.Position) }

// CardRevealing shows the card just fixed into a position.
type CardRevealing struct {
	CardID   string
	Position int
}

func (CardRevealing) phase() {}
func (p CardRevealing) String() string {
	return fmt.Sprintf("card_revealing(%s, %d)", p.CardID, p.Position)
}

// WaitingBeforeReading covers the reading-generation call.
type WaitingBeforeReading struct{}

func (WaitingBeforeReading) phase()         {}
func (WaitingBeforeReading) String() string { return "waiting_before_reading" }

// FollowUps accepts free-form follow-up questions after the reading.
type FollowUps struct{}

func (FollowUps) phase()         {}
func (FollowUps) String() string { return "follow_ups" }

// ClarificationPicking awaits a card selection for a clarification draw.
type ClarificationPicking struct {
	Position int
}

func (ClarificationPicking) phase() {}
func (p ClarificationPicking) String() string {
	return fmt.Sprintf("clarification_picking(%d)", p.Position)
}

// ClarificationRevealing shows the clarification card just drawn.
type ClarificationRevealing struct {
	CardID   string
	Position int
}

func (ClarificationRevealing) phase() {}
func (p ClarificationRevealing) String() string {
	return fmt.Sprintf("clarification_revealing(%s, %d)", p.CardID, p.Position)
}

// ClarificationProcessing covers the second clarification call, made with
// the newly drawn cards included.
type ClarificationProcessing struct{}

func (ClarificationProcessing) phase()         {}
func (ClarificationProcessing) String() string { return "clarification_processing" }
