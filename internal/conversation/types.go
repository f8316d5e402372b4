package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Turn is one completed question/answer exchange for a user.
type Turn struct {
	ID        int64
	UserID    string
	Question  string
	Answer    string
	CreatedAt time.Time
}

// Chronological returns the turns in oldest-first order, assuming the input
// is most-recent-first as returned by History. The input slice is not
// modified.
func Chronological(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[len(turns)-1-i] = t
	}
	return out
}

// FormatForDisplay renders turns as a numbered, timestamped listing in
// oldest-first order, for surfacing history to the model or the terminal.
func FormatForDisplay(userID string, turns []Turn) string {
	if len(turns) == 0 {
		return fmt.Sprintf("No conversation history found for user %s", userID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation history for user %s:\n", userID)
	for i, t := range Chronological(turns) {
		fmt.Fprintf(&b, "\n%d. [%s]\n", i+1, t.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "   Q: %s\n", t.Question)
		fmt.Fprintf(&b, "   A: %s\n", t.Answer)
	}
	return b.String()
}
