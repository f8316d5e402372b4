package cmd

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "ask", "migrate", "version"}

	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}

	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered on root", name)
		}
	}
}

func TestAskRequiresQuestionArg(t *testing.T) {
	if err := askCmd.Args(askCmd, []string{}); err == nil {
		t.Error("ask should reject empty args")
	}
	if err := askCmd.Args(askCmd, []string{"when", "does", "enrollment", "close"}); err != nil {
		t.Errorf("ask should accept a question: %v", err)
	}
}
