package conversation

import (
	"strings"
	"time"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

func (s Speaker) Label() string {
	switch s {
	case SpeakerAssistant:
		return "Assistant"
	default:
		return "User"
	}
}

type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// RecentTurns returns at most n trailing turns, oldest first.
func RecentTurns(history []Turn, n int) []Turn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func FormatTurns(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, turn.Speaker.Label()+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}
