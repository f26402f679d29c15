package sqlgen

import "strings"

// Clarification indicates a question is too vague to answer and carries a
// suggestion for the user.
type Clarification struct {
	Needed     bool
	Suggestion string
}

var vagueTerms = []string{
	"something", "anything", "stuff", "things", "data", "info", "information",
}

// NeedsClarification applies two heuristics: fewer than three words, or a
// vague filler term anywhere in the question.
func NeedsClarification(question string) Clarification {
	if len(strings.Fields(strings.TrimSpace(question))) < 3 {
		return Clarification{
			Needed:     true,
			Suggestion: "Could you provide more details about what you're looking for?",
		}
	}

	lower := strings.ToLower(question)
	for _, term := range vagueTerms {
		if strings.Contains(lower, term) {
			return Clarification{
				Needed:     true,
				Suggestion: "Could you be more specific? For example, are you asking about transporters, routes, or delays?",
			}
		}
	}

	return Clarification{}
}
