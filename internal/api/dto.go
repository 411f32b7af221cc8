package api

import (
	"github.com/starford/deckhand/internal/deckservice"
	"github.com/starford/deckhand/internal/ledger"
)

// DeckSummary is a lightweight item in a list response (aliased from the domain layer).
type DeckSummary = deckservice.DeckSummary

// DeckDetail is the full deck response type (aliased from the domain layer).
type DeckDetail = deckservice.DeckDetail

// DeckListResponse wraps deck listings.
type DeckListResponse struct {
	Decks []DeckSummary `json:"decks" validate:"required"`
}

// SyncResponse reports the result of a forced sync pass.
type SyncResponse struct {
	Deck     string `json:"deck" example:"spells" validate:"required"`
	Outcome  string `json:"outcome" example:"resolved" validate:"required"`
	Revision int    `json:"revision" example:"3"`
	Error    string `json:"error,omitempty"`
}

// HistoryResponse wraps recorded sync passes, newest first.
type HistoryResponse struct {
	Passes []ledger.Pass `json:"passes" validate:"required"`
}

// IconResponse is the resolved location of an icon.
type IconResponse struct {
	Icon string `json:"icon" example:"fire" validate:"required"`
	Path string `json:"path" example:"/icons/fire.svg" validate:"required"`
}
