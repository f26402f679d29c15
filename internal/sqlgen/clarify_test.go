package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsClarification_ShortQuestion(t *testing.T) {
	c := NeedsClarification("delays?")

	assert.True(t, c.Needed)
	assert.Contains(t, c.Suggestion, "more details")
}

func TestNeedsClarification_VagueTerms(t *testing.T) {
	tests := []string{
		"show me something interesting",
		"give me any information you have",
		"what stuff happened yesterday",
	}

	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			c := NeedsClarification(q)
			assert.True(t, c.Needed)
			assert.Contains(t, c.Suggestion, "more specific")
		})
	}
}

func TestNeedsClarification_SpecificQuestionPasses(t *testing.T) {
	c := NeedsClarification("What is the delay percentage by transporter?")

	assert.False(t, c.Needed)
	assert.Empty(t, c.Suggestion)
}
