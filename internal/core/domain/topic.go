package domain

// MaxTopicKeywords bounds the persisted keyword set per conversation.
const MaxTopicKeywords = 5

// TopicContext is the small ordered keyword set describing what a
// conversation is about. Passed by value through the pipeline; pipeline
// stages never mutate a stored context in place, they write back a full
// new value.
type TopicContext struct {
	ConversationID string   `json:"conversation_id"`
	Keywords       []string `json:"keywords"`
	CreatedAtTurn  int      `json:"created_at_turn"`
}

func (t TopicContext) Empty() bool {
	return len(t.Keywords) == 0
}

// MergeTopicContext is the hand-off reducer: the incoming value wins only
// when it is non-empty and nothing is stored yet. A non-empty stored topic
// is never replaced, and an empty incoming value never clears one. Applied
// at every pipeline boundary so the keyword set cannot silently revert to
// empty mid-conversation.
func MergeTopicContext(stored, incoming TopicContext) TopicContext {
	if !stored.Empty() {
		return stored
	}
	if incoming.Empty() {
		return stored
	}
	out := incoming
	if len(out.Keywords) > MaxTopicKeywords {
		out.Keywords = out.Keywords[:MaxTopicKeywords]
	}
	return out
}

// NewTopicContext clips the keyword list to the persisted maximum.
func NewTopicContext(conversationID string, keywords []string, turn int) TopicContext {
	if len(keywords) > MaxTopicKeywords {
		keywords = keywords[:MaxTopicKeywords]
	}
	return TopicContext{
		ConversationID: conversationID,
		Keywords:       keywords,
		CreatedAtTurn:  turn,
	}
}
