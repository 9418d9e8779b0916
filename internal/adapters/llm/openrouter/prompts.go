package openrouter

import (
	"fmt"
	"strings"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

const jsonOnlyRule = "Respond with ONLY a JSON object (no markdown, no code fences, no extra text)"

const assessIntentSystem = `You are a tarot reader's assistant assessing whether a seeker's question is clear enough to read on.

Rules:
- "clear" means you can state the question in one sentence and name its topic.
- If unclear, ask ONE gentle clarifying question in assistant_message.
- Never provide medical, legal, or financial advice.

` + jsonOnlyRule + ` matching this exact schema:
{
  "status": "clear" | "unclear",
  "summary": "<one-sentence restatement, when clear>",
  "topic": "<love|career|self|general, when clear>",
  "timeframe": "<timeframe if the seeker named one>",
  "assistant_message": "<clarifying question, when unclear>"
}`

func assessIntentUser(message string) string {
	return fmt.Sprintf("The seeker says: %q", message)
}

const generateSpreadSystem = `You design tarot spreads. Given a seeker's intention, produce between 1 and 10 named positions, each with an interpretive role.

` + jsonOnlyRule + ` matching this exact schema:
{
  "positions": [
    {"key": "<snake_case key>", "label": "<short display label>", "role": "<what this position speaks to>"}
  ]
}`

func generateSpreadUser(intentSummary, timeframe string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intention: %s\n", intentSummary)
	if timeframe != "" {
		fmt.Fprintf(&b, "Timeframe: %s\n", timeframe)
	}
	b.WriteString("Design the spread.")
	return b.String()
}

const generateReadingSystem = `You are a tarot reader providing neutral, reflective interpretations.

Rules:
- Be maximally neutral and balanced.
- Never provide medical, legal, or financial advice.
- Never predict specific outcomes or disasters.
- Interpret each card in its position, then weave a synthesis.

` + jsonOnlyRule + ` matching this exact schema:
{
  "cards": [{"card_id": "<id>", "interpretation": "<interpretation in position>"}],
  "synthesis": "<cohesive overall reading>"
}`

func generateReadingUser(intentSummary string, cards []ports.CardContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intention: %s\n\nCards drawn:\n", intentSummary)
	writeCards(&b, cards)
	b.WriteString("\nProvide the reading as a single JSON object.")
	return b.String()
}

const clarificationSystem = `You answer a seeker's follow-up question about their tarot reading.

Rules:
- If the question can be answered from the cards already on the table, answer it and set is_final_answer true.
- If 1 to 3 additional cards would genuinely help, set is_final_answer false and name the positions to draw in requested_positions (never more than 3).
- When the message includes newly drawn cards, use them and give the final answer.

` + jsonOnlyRule + ` matching this exact schema:
{
  "synthesis": "<your answer>",
  "is_final_answer": true | false,
  "cards": [{"card_id": "<id>", "interpretation": "<interpretation>"}],
  "requested_positions": [{"key": "<key>", "label": "<label>", "role": "<role>"}]
}`

func clarificationUser(question string, newCards []ports.CardContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The seeker asks: %q\n", question)
	if len(newCards) > 0 {
		b.WriteString("\nNewly drawn cards:\n")
		writeCards(&b, newCards)
	}
	return b.String()
}

func writeCards(b *strings.Builder, cards []ports.CardContext) {
	for _, card := range cards {
		orientation := "upright"
		if card.Reversed {
			orientation = "reversed"
		}
		fmt.Fprintf(b, "  %s [%s]: %s (%s)\n", card.PositionLabel, card.PositionRole, card.Name, orientation)
		if len(card.Keywords) > 0 {
			fmt.Fprintf(b, "    Keywords: %s\n", strings.Join(card.Keywords, ", "))
		}
		if card.Meaning != "" {
			fmt.Fprintf(b, "    Meaning: %s\n", card.Meaning)
		}
	}
}

func retryPrompt(badJSON string) string {
	return fmt.Sprintf(`Your previous response was not valid JSON. Here is what you returned:
%s

Return ONLY the corrected JSON object matching the schema (no markdown, no code fences).`, badJSON)
}
