package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"effectlint/internal/analysis"
	"effectlint/internal/guidance"
	"effectlint/internal/syntax"
)

func TestDeterministicEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		wantJSON string
	}{
		{
			name: "struct with floats",
			input: struct {
				RuleID     string  `json:"ruleId"`
				Confidence float64 `json:"confidence"`
				Line       int     `json:"line"`
			}{"node-fs", 0.123456789, 4},
			wantJSON: `{"confidence":0.123457,"line":4,"ruleId":"node-fs"}`,
		},
		{
			name: "nil pointer field omitted",
			input: struct {
				RuleID   string        `json:"ruleId"`
				Guidance *guidance.Doc `json:"guidance,omitempty"`
			}{RuleID: "node-fs"},
			wantJSON: `{"ruleId":"node-fs"}`,
		},
		{
			name: "omitempty zero value",
			input: struct {
				RuleID string `json:"ruleId"`
				Count  int    `json:"count,omitempty"`
			}{RuleID: "node-fs"},
			wantJSON: `{"ruleId":"node-fs"}`,
		},
		{
			name:     "map keys sorted",
			input:    map[string]interface{}{"zebra": "last", "alpha": "first", "beta": "second"},
			wantJSON: `{"alpha":"first","beta":"second","zebra":"last"}`,
		},
		{
			name:     "nil value",
			input:    nil,
			wantJSON: `null`,
		},
		{
			name:     "empty slice kept",
			input:    []string{},
			wantJSON: `[]`,
		},
		{
			name: "nil slice omitted",
			input: struct {
				Files []string `json:"files"`
				ID    string   `json:"id"`
			}{ID: "mixed-fs"},
			wantJSON: `{"id":"mixed-fs"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeterministicEncode(tt.input)
			if err != nil {
				t.Fatalf("DeterministicEncode() error = %v", err)
			}
			if string(got) != tt.wantJSON {
				t.Errorf("DeterministicEncode() = %s, want %s", got, tt.wantJSON)
			}
		})
	}
}

func TestDeterministicEncode_TimeKept(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := DeterministicEncode(map[string]interface{}{"startedAt": at})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"startedAt":"2026-01-02T03:04:05Z"}` {
		t.Errorf("unexpected encoding %s", got)
	}
}

func TestDeterministicEncode_Report(t *testing.T) {
	report := &analysis.Report{
		Filename: "a.ts",
		Findings: []analysis.Finding{{
			RuleID:     "node-fs",
			Filename:   "a.ts",
			Range:      syntax.Range{StartByte: 0, EndByte: 24},
			Message:    "use FileSystem",
			Severity:   "warning",
			Confidence: 0.8500000001,
		}},
		DurationMs: 3,
	}

	first, err := DeterministicEncode(report)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := DeterministicEncode(report)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding is not deterministic:\n%s\n%s", first, again)
		}
	}

	var decoded struct {
		Findings []struct {
			Confidence float64 `json:"confidence"`
			Guidance   any     `json:"guidance"`
		} `json:"findings"`
	}
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Findings) != 1 || decoded.Findings[0].Confidence != 0.85 {
		t.Errorf("unexpected findings %+v", decoded.Findings)
	}
	if decoded.Findings[0].Guidance != nil {
		t.Error("nil guidance should be omitted")
	}
	if bytes.Contains(first, []byte("warnings")) {
		t.Error("nil warnings should be omitted")
	}
}

func TestDeterministicEncode_EmptyFindingsKept(t *testing.T) {
	got, err := DeterministicEncode(&analysis.Report{Filename: "a.ts", Findings: []analysis.Finding{}})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(got, []byte(`"findings":[]`)) {
		t.Errorf("empty findings should encode as []: %s", got)
	}
}

func TestDeterministicEncodeIndented(t *testing.T) {
	got, err := DeterministicEncodeIndented(map[string]interface{}{"ruleId": "node-fs", "confidence": 0.123456789}, "  ")
	if err != nil {
		t.Fatalf("DeterministicEncodeIndented() error = %v", err)
	}
	want := "{\n  \"confidence\": 0.123457,\n  \"ruleId\": \"node-fs\"\n}"
	if string(got) != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
