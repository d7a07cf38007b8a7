package session

import "testing"

func TestNormalizeModel(t *testing.T) {
	cases := map[string]string{
		"Claude-3":       ModelClaude,
		"  GPT-4o ":      ModelGPT,
		"gemini-1.5-pro": ModelGemini,
		"DeepSeek-V3":    ModelDeepSeek,
		"mystery-model":  DefaultModel,
		"":               "",
	}
	for in, want := range cases {
		if got := NormalizeModel(in); got != want {
			t.Errorf("NormalizeModel(%q)=%q want %q", in, got, want)
		}
	}
}

func TestTranscriptAppendAndCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Message{Role: RoleAssistant, Content: "hi there", Model: ModelClaude})
	tr.Append(Message{Role: RoleUser, Content: "  "})
	tr.Append(Message{Role: RoleUser, Content: " Hello "})

	if tr.Len() != 3 {
		t.Fatalf("Len=%d want 3", tr.Len())
	}
	msgs := tr.Messages()
	msgs[0].Content = "mutated"
	if tr.Messages()[0].Content != "hi there" {
		t.Fatal("Messages should return a copy")
	}

	first, ok := tr.FirstUserMessage()
	if !ok || first != "Hello" {
		t.Fatalf("FirstUserMessage=%q,%v want Hello,true", first, ok)
	}
}

func TestTranscriptReset(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Message{Role: RoleUser, Content: "old"})
	tr.Reset([]Message{{Role: RoleAssistant, Content: "new"}})

	if tr.Len() != 1 || tr.Messages()[0].Content != "new" {
		t.Fatalf("unexpected transcript after reset: %+v", tr.Messages())
	}
	if _, ok := tr.FirstUserMessage(); ok {
		t.Fatal("no user message expected after reset")
	}
}
