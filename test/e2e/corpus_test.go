package e2e

import (
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/generate"
)

func TestBuildCorpus_UniqueNamesAndCompanies(t *testing.T) {
	leads := BuildCorpus()
	if len(leads) != len(firstNames) {
		t.Fatalf("leads = %d, want %d", len(leads), len(firstNames))
	}
	names := make(map[string]bool)
	companySeen := make(map[string]bool)
	for _, l := range leads {
		if names[l.Name] {
			t.Errorf("duplicate name %q", l.Name)
		}
		if companySeen[l.Company] {
			t.Errorf("duplicate company %q", l.Company)
		}
		names[l.Name] = true
		companySeen[l.Company] = true
		if l.ConversionProbability < 0 || l.ConversionProbability >= 1 {
			t.Errorf("%s: probability %v out of range", l.Name, l.ConversionProbability)
		}
	}
}

func TestBuildQueryCases_AnswersExistInKnowledgeBase(t *testing.T) {
	leads := BuildCorpus()
	records := generate.NewGenerator().Generate(leads)
	cases := BuildQueryCases(leads)
	if len(cases) == 0 {
		t.Fatal("no query cases")
	}
	for _, tc := range cases {
		found := false
		for _, r := range records {
			if strings.HasPrefix(r.Answer, tc.WantAnswer) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s: no record answers %q", tc.Description, tc.WantAnswer)
		}
	}
}
