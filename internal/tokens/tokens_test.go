package tokens

import "testing"

func TestWordCounter(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"yes it is possible", 5}, // 4 words / 0.75 = 5.33 -> 5
		{"hello", 1},              // 1 / 0.75 = 1.33 -> 1
		{"one two three", 4},      // 3 / 0.75 = 4
		{"a b c d e f", 8},        // 6 / 0.75 = 8
	}

	var c WordCounter
	for _, tt := range tests {
		if got := c.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter("gpt-4")
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error: %v", err)
	}

	if got := c.Count(""); got != 0 {
		t.Errorf("Count(empty) = %d, want 0", got)
	}
	if got := c.Count("hello world"); got <= 0 {
		t.Errorf("Count(hello world) = %d, want positive", got)
	}
}

func TestTiktokenCounterUnknownModelFallsBack(t *testing.T) {
	c, err := NewTiktokenCounter("totally-unknown-model")
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error: %v", err)
	}

	if got := c.Count("hello world"); got <= 0 {
		t.Errorf("Count() with fallback encoding = %d, want positive", got)
	}
}

func TestMeasureTotalIsExactSum(t *testing.T) {
	history := []Pair{
		{Question: "what is the deadline", Answer: "june thirtieth"},
		{Question: "can I enroll late", Answer: "yes with a fee"},
	}

	usage := Measure(WordCounter{}, history, "how much is the fee", "fifty euros")
	if usage.Total != usage.Prompt+usage.Completion {
		t.Fatalf("Total = %d, want Prompt(%d) + Completion(%d)",
			usage.Total, usage.Prompt, usage.Completion)
	}
	if usage.Prompt <= 0 || usage.Completion <= 0 {
		t.Errorf("usage = %+v, want positive components", usage)
	}
}

func TestMeasurePromptCoversHistoryAndQuestion(t *testing.T) {
	// With the word heuristic, adding history must increase prompt tokens.
	empty := Measure(WordCounter{}, nil, "just the question", "an answer")
	withHistory := Measure(WordCounter{},
		[]Pair{{Question: "earlier question", Answer: "earlier answer"}},
		"just the question", "an answer")

	if withHistory.Prompt <= empty.Prompt {
		t.Errorf("prompt tokens with history (%d) not greater than without (%d)",
			withHistory.Prompt, empty.Prompt)
	}
	if withHistory.Completion != empty.Completion {
		t.Errorf("completion tokens changed with history: %d vs %d",
			withHistory.Completion, empty.Completion)
	}
}
