package domain

import "errors"

var (
	ErrSpreadSize     = errors.New("spread must have between 1 and 10 positions")
	ErrUnknownCard    = errors.New("unknown card id")
	ErrCardNotInDeck  = errors.New("card is not in the deck")
	ErrDeckEmpty      = errors.New("deck is empty")
	ErrUpstreamLLM    = errors.New("upstream LLM failure")
	ErrInvalidLLMJSON = errors.New("LLM returned invalid JSON after retry")
)
