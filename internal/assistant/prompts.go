package assistant

import "fmt"

// basePrompt is the fixed system prompt for answer generation. It pins the
// behaviors the service depends on: the model answers only the latest
// question, grounds itself in retrieved documents, admits missing evidence,
// cites sources, and mirrors the question's language.
const basePrompt = "You are an expert assistant for an open education institute. " +
	"IMPORTANT: ALWAYS answer the user's most recent question. " +
	"The conversation history is provided for context and reference only, never as a question to answer. " +
	"Use only information from the retrieved documents as evidence. " +
	"If the documents do not contain the answer, state explicitly that the information is not available. " +
	"Cite source identifiers when they are available. " +
	"Reply in the same language as the question. " +
	"Be precise, brief and evidence-based."

// systemPrompt extends the base prompt with the user identity so history
// lookups through tools target the right user.
func systemPrompt(userID string) string {
	return fmt.Sprintf("%s\nContext: User ID = %s.", basePrompt, userID)
}
