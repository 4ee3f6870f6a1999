package research

import (
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantSummary string
		wantBullets []string
	}{
		{
			name:        "summary and dash bullets",
			input:       "Decentralized inference is powerful.\n- Point A\n- Point B",
			wantSummary: "Decentralized inference is powerful.",
			wantBullets: []string{"Point A", "Point B"},
		},
		{
			name:        "sentence fallback",
			input:       "First insight. Second insight. Third insight.",
			wantSummary: "First insight.",
			wantBullets: []string{"Second insight", "Third insight"},
		},
		{
			name:        "mixed markers",
			input:       "Summary line\n• dot bullet\n1. numbered\n12.  wide numbered\n-tight",
			wantSummary: "Summary line",
			wantBullets: []string{"dot bullet", "numbered", "wide numbered", "tight"},
		},
		{
			name:        "only first prose line kept",
			input:       "Keep me\n- a\nDrop me\n- b",
			wantSummary: "Keep me",
			wantBullets: []string{"a", "b"},
		},
		{
			name:        "bullets only",
			input:       "- one\n- two",
			wantSummary: PlaceholderSummary,
			wantBullets: []string{"one", "two"},
		},
		{
			name:        "single bullet",
			input:       "- lonely",
			wantSummary: PlaceholderSummary,
			wantBullets: []string{"lonely"},
		},
		{
			name:        "empty",
			input:       "",
			wantSummary: PlaceholderSummary,
			wantBullets: []string{},
		},
		{
			name:        "whitespace only",
			input:       "  \n\t\n   ",
			wantSummary: PlaceholderSummary,
			wantBullets: []string{},
		},
		{
			name:        "stray whitespace and CRLF",
			input:       "\r\n   Padded summary   \r\n   -   spaced bullet  \r\n",
			wantSummary: "Padded summary",
			wantBullets: []string{"spaced bullet"},
		},
		{
			name:        "single sentence without terminator",
			input:       "Just one thought",
			wantSummary: "Just one thought.",
			wantBullets: []string{},
		},
		{
			name:        "exclamation and question marks",
			input:       "Wow! Really? Yes.",
			wantSummary: "Wow.",
			wantBullets: []string{"Really", "Yes"},
		},
		{
			name:        "punctuation only",
			input:       "...",
			wantSummary: "...",
			wantBullets: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if got.Summary != tt.wantSummary {
				t.Errorf("Summary = %q, want %q", got.Summary, tt.wantSummary)
			}
			if got.BulletPoints == nil {
				t.Fatal("BulletPoints is nil, want non-nil slice")
			}
			if !reflect.DeepEqual(got.BulletPoints, tt.wantBullets) {
				t.Errorf("BulletPoints = %q, want %q", got.BulletPoints, tt.wantBullets)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	plain := BuildPrompt("what is PoI?", "")
	withURL := BuildPrompt("what is PoI?", "https://example.com/poi")

	if !strings.Contains(plain, "Research question: what is PoI?") {
		t.Errorf("plain prompt missing question: %q", plain)
	}
	if strings.Contains(plain, "Analyze this URL") {
		t.Errorf("plain prompt mentions URL: %q", plain)
	}
	if !strings.Contains(withURL, "Analyze this URL: https://example.com/poi") {
		t.Errorf("url prompt missing URL: %q", withURL)
	}
	if !strings.Contains(withURL, `bullet points starting with "-"`) {
		t.Errorf("prompt missing bullet instruction: %q", withURL)
	}
}
