package chat

import "time"

// Kind tags a transcript entry. AssistantError marks the fallback entry
// appended when a send fails, so it is distinguishable from a real reply.
type Kind int

const (
	KindUser Kind = iota
	KindAssistant
	KindAssistantError
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindAssistant:
		return "assistant"
	default:
		return "assistant_error"
	}
}

// FallbackReply is the content of an AssistantError entry.
const FallbackReply = "Error occurred"

type Message struct {
	Kind    Kind      `json:"kind"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func User(text string) Message {
	return Message{Kind: KindUser, Content: text, At: time.Now()}
}

func Assistant(text string) Message {
	return Message{Kind: KindAssistant, Content: text, At: time.Now()}
}

func AssistantError() Message {
	return Message{Kind: KindAssistantError, Content: FallbackReply, At: time.Now()}
}

// Role is the wire role: "user" or "assistant".
func (m Message) Role() string {
	if m.Kind == KindUser {
		return "user"
	}
	return "assistant"
}

func (m Message) Failed() bool { return m.Kind == KindAssistantError }
