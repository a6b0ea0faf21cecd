package segment

import "testing"

func TestRuleSplitter(t *testing.T) {
	s := NewRuleSplitter()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "   ", nil},
		{"single", "no punctuation here", []string{"no punctuation here"}},
		{"two", "Hello world. This is a test.", []string{"Hello world. ", "This is a test."}},
		{"question", "Ready? Go!", []string{"Ready? ", "Go!"}},
		{"title", "Ask Dr. Smith today. Then leave.", []string{"Ask Dr. Smith today. ", "Then leave."}},
		{"initial", "J. R. R. Tolkien wrote it. Yes.", []string{"J. R. R. Tolkien wrote it. ", "Yes."}},
		{"decimal", "Pi is 3.14 roughly. Ok.", []string{"Pi is 3.14 roughly. ", "Ok."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := s.Split(tt.text)
			if len(spans) != len(tt.want) {
				t.Fatalf("got %d spans, want %d: %v", len(spans), len(tt.want), spans)
			}
			for i, sp := range spans {
				if got := tt.text[sp.Start:sp.End]; got != tt.want[i] {
					t.Errorf("span %d = %q, want %q", i, got, tt.want[i])
				}
			}
			if len(spans) > 0 && (spans[0].Start != 0 || spans[len(spans)-1].End != len(tt.text)) {
				t.Errorf("spans do not cover text: %v", spans)
			}
		})
	}
}
