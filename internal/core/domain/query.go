package domain

// Query carries the raw question plus the normalized variants each backend
// searches with. Immutable once built for a turn.
type Query struct {
	Raw                string    `json:"raw"`
	LexicalQuery       string    `json:"lexical_query"`
	VectorQuery        string    `json:"vector_query"`
	EntityQuery        string    `json:"entity_query"`
	SemanticExpansions []string  `json:"semantic_expansions,omitempty"`
	QueryVector        []float32 `json:"-"`
	HydeVector         []float32 `json:"-"`

	ConversationID string `json:"conversation_id"`
	TurnIndex      int    `json:"turn_index"`
}

// Keyword is one extracted keyword with its importance score.
// Importance is lower-is-more-important throughout the engine.
type Keyword struct {
	Keyword    string  `json:"keyword"`
	Importance float64 `json:"importance"`
}
