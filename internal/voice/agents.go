package voice

import "github.com/dungdc40/tarot-nextjs-sub000/internal/ports"

// Tool names exposed to the agent runtime.
const (
	toolBeginRitual    = "begin_ritual"
	toolWaitForRitual  = "wait_for_ritual"
	toolDrawCardsBatch = "draw_cards_batch"
	toolDrawCardSingle = "draw_card_single"
	toolShowCard       = "show_card"
)

// agentTools is each agent's tool surface. A call outside the active agent's
// surface is failed back to the runtime rather than executed.
var agentTools = map[ports.AgentRole]map[string]bool{
	ports.AgentIntent: {
		toolBeginRitual: true,
	},
	ports.AgentSpread: {
		toolDrawCardsBatch: true,
		toolWaitForRitual:  true,
	},
	ports.AgentReading: {
		toolShowCard: true,
	},
	ports.AgentFollowup: {
		toolDrawCardSingle: true,
		toolShowCard:       true,
	},
}

// autoHandoffs declares the one framework-automatic handoff: Reading to
// Followup needs no UI gating, so it is declared once at session setup.
// The Intent->Spread and Spread->Reading seams depend on non-conversational
// UI timing and are manual swaps instead.
var autoHandoffs = map[ports.AgentRole]ports.AgentRole{
	ports.AgentReading: ports.AgentFollowup,
}

// openingLine prompts the Intent agent to speak first.
const openingLine = "The seeker has joined. Greet them and ask what they would like guidance on today."
