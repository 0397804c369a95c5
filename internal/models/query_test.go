package models

import (
	"testing"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *AskRequest
		wantErr bool
	}{
		{"empty query", &AskRequest{Query: ""}, true},
		{"blank query", &AskRequest{Query: "   \t"}, true},
		{"valid query", &AskRequest{Query: "capital of France"}, false},
		{"direct mode", &AskRequest{Query: "x", Mode: "direct"}, false},
		{"augmented mode mixed case", &AskRequest{Query: "x", Mode: " Augmented "}, false},
		{"unknown mode", &AskRequest{Query: "x", Mode: "creative"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.req.Query != "" && tt.req.Query[0] == ' ' {
				t.Errorf("query not trimmed: %q", tt.req.Query)
			}
		})
	}
}

func TestAskRequest_ValidateNormalizesMode(t *testing.T) {
	req := &AskRequest{Query: "q", Mode: " Augmented "}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.Mode != "augmented" {
		t.Errorf("mode = %q, want augmented", req.Mode)
	}
}

func TestFingerprint(t *testing.T) {
	a := []QARecord{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}
	b := []QARecord{{Question: "q2", Answer: "a2"}, {Question: "q1", Answer: "a1"}}
	if Fingerprint(a) != Fingerprint(a) {
		t.Error("fingerprint should be deterministic")
	}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("reordering records must change the fingerprint")
	}
	// The separator keeps "ab"+"c" distinct from "a"+"bc".
	c := []QARecord{{Question: "ab", Answer: "c"}}
	d := []QARecord{{Question: "a", Answer: "bc"}}
	if Fingerprint(c) == Fingerprint(d) {
		t.Error("field boundaries must affect the fingerprint")
	}
}

func TestCorpus_Questions(t *testing.T) {
	c := NewCorpus("kb.json", []QARecord{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}})
	qs := c.Questions()
	if len(qs) != 2 || qs[0] != "q1" || qs[1] != "q2" {
		t.Errorf("Questions() = %v", qs)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d", c.Len())
	}
	var nilCorpus *Corpus
	if nilCorpus.Len() != 0 {
		t.Error("nil corpus should have length 0")
	}
}

func TestNoMatch(t *testing.T) {
	m := NoMatch(0.2, 0.4)
	if m.Matched || m.Record != nil || m.Index != -1 {
		t.Errorf("NoMatch = %+v", m)
	}
}
