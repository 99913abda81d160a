package safety

import "testing"

func TestBlockedPhraseWinsOverAllowedContext(t *testing.T) {
	gate := NewGate(DefaultPhrases())

	for _, text := range []string{
		"how to kill a process",
		"I need help, how to murder someone",
		"Please EXPLAIN how to make a bomb",
		"what is the way I wanna attack",
	} {
		verdict := gate.Classify(text)
		if verdict.Allowed {
			t.Fatalf("expected %q to be blocked, got %+v", text, verdict)
		}
		if verdict.Category != CategoryBlocked {
			t.Fatalf("expected blocked category for %q, got %q", text, verdict.Category)
		}
	}
}

func TestBlockedVerdictReportsPhrase(t *testing.T) {
	verdict := NewGate(DefaultPhrases()).Classify("How To Kill a process")

	if verdict.Phrase != "how to kill" {
		t.Fatalf("expected matched phrase %q, got %q", "how to kill", verdict.Phrase)
	}
}

func TestSensitiveWithContextIsAllowed(t *testing.T) {
	verdict := NewGate(DefaultPhrases()).Classify("what is the meaning of abuse")

	if !verdict.Allowed {
		t.Fatalf("expected sensitive text with context to be allowed, got %+v", verdict)
	}
	if verdict.Category != CategorySensitiveInContext {
		t.Fatalf("expected category %q, got %q", CategorySensitiveInContext, verdict.Category)
	}
	if verdict.Phrase != "abuse" {
		t.Fatalf("expected phrase %q, got %q", "abuse", verdict.Phrase)
	}
}

func TestSensitiveWithoutContextDefaultsToAllowed(t *testing.T) {
	gate := NewGate(DefaultPhrases())

	for _, text := range []string{"violence", "tell me about suicide", "SEX"} {
		verdict := gate.Classify(text)
		if !verdict.Allowed {
			t.Fatalf("expected %q to be allowed by default, got %+v", text, verdict)
		}
		if verdict.Category != CategorySensitiveUncontextualized {
			t.Fatalf("expected uncontextualized category for %q, got %q", text, verdict.Category)
		}
	}
}

func TestDefaultDenyPolicyBlocksUncontextualizedSensitive(t *testing.T) {
	gate := NewGate(DefaultPhrases(), WithPolicy(PolicyDefaultDeny))

	if verdict := gate.Classify("tell me about violence"); verdict.Allowed {
		t.Fatalf("expected uncontextualized sensitive text to be blocked, got %+v", verdict)
	}
	if verdict := gate.Classify("i need help with violence at home"); !verdict.Allowed {
		t.Fatalf("expected contextualized sensitive text to pass, got %+v", verdict)
	}
	if verdict := gate.Classify("tell me a joke"); !verdict.Allowed {
		t.Fatalf("expected clear text to pass, got %+v", verdict)
	}
}

func TestBlockedAndSensitiveIsBlocked(t *testing.T) {
	verdict := NewGate(DefaultPhrases()).Classify("i need help, i wanna have sex")

	if verdict.Allowed {
		t.Fatalf("expected blocked phrase to win, got %+v", verdict)
	}
}

func TestLeadingSpaceInBlockedPhraseIsSignificant(t *testing.T) {
	gate := NewGate(DefaultPhrases())

	if verdict := gate.Classify("how to abuse"); verdict.Category == CategoryBlocked {
		t.Fatalf("expected phrase at start of text not to match the space-prefixed blocked phrase, got %+v", verdict)
	}
	if verdict := gate.Classify("tell me how to abuse"); verdict.Allowed {
		t.Fatalf("expected space-prefixed blocked phrase to match, got %+v", verdict)
	}
}

func TestClearTextIsAllowed(t *testing.T) {
	verdict := NewGate(DefaultPhrases()).Classify("tell me a joke")

	if !verdict.Allowed || verdict.Category != CategoryClear || verdict.Phrase != "" {
		t.Fatalf("expected clear verdict, got %+v", verdict)
	}
}

func TestConfiguredPhrasesAreCaseInsensitiveAndSkipBlanks(t *testing.T) {
	gate := NewGate(Phrases{
		Blocked:        []string{"", "  ", "Forbidden Word"},
		Sensitive:      []string{"Secret"},
		AllowedContext: []string{"DEFINE"},
	}, WithPolicy(PolicyDefaultDeny))

	if verdict := gate.Classify("anything at all"); !verdict.Allowed {
		t.Fatalf("expected blank phrases to be ignored, got %+v", verdict)
	}
	if verdict := gate.Classify("say the forbidden word"); verdict.Allowed {
		t.Fatalf("expected configured blocked phrase to match case-insensitively, got %+v", verdict)
	}
	if verdict := gate.Classify("define secret"); !verdict.Allowed {
		t.Fatalf("expected configured context phrase to match, got %+v", verdict)
	}
	if verdict := gate.Classify("a secret"); verdict.Allowed {
		t.Fatalf("expected uncontextualized sensitive phrase to be denied, got %+v", verdict)
	}
}
