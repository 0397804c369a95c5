package e2e

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/generate"
)

var (
	firstNames = []string{
		"Amara", "Bastian", "Celine", "Dario", "Elsa", "Farid", "Greta", "Hiro", "Ines", "Jonas",
		"Kenji", "Lucia", "Mateo", "Nadia", "Oskar", "Priya", "Quentin", "Rosa", "Sven", "Talia",
	}
	lastNames = []string{
		"Abernathy", "Brightwater", "Castellanos", "Dunmore", "Eriksen", "Fairweather", "Galloway", "Hallstrom", "Iwasaki", "Jablonski",
		"Kowalczyk", "Lindqvist", "Montague", "Nakamura", "Okonkwo", "Pellegrini", "Quispe", "Rasmussen", "Szabo", "Thornbury",
	}
	companies = []string{
		"Acmetron", "Brightforge", "Cobaltix", "Dunecrest", "Emberlyn", "Fluxwave", "Glimmerstone", "Harborlight", "Ironquill", "Junipero",
		"Kestrelbyte", "Lumenvault", "Moonfield", "Northquay", "Orbitalis", "Pinecrest", "Quarrytech", "Redwillow", "Silverpeak", "Tidewater",
	}
	jobTitles  = []string{"CTO", "Head of Sales", "Procurement Manager", "Founder"}
	industries = []string{"Software", "Logistics", "Healthcare", "Retail", "Energy"}
	regions    = []string{"Europe", "North America", "Asia"}
)

// QueryTestCase is a question posed to the assistant and the answer it must return.
type QueryTestCase struct {
	Query       string
	WantAnswer  string
	Description string
}

// BuildCorpus returns a deterministic set of leads, each with a unique name and company.
func BuildCorpus() []generate.Lead {
	leads := make([]generate.Lead, len(firstNames))
	for i := range firstNames {
		leads[i] = generate.Lead{
			Name:                  firstNames[i] + " " + lastNames[i],
			Company:               companies[i],
			ConversionProbability: float64((i*37)%100) / 100,
			JobTitle:              jobTitles[i%len(jobTitles)],
			Links:                 fmt.Sprintf("https://www.linkedin.com/in/%s-%s", firstNames[i], lastNames[i]),
			Employees:             fmt.Sprintf("%d", 50+i*25),
			Industry:              industries[i%len(industries)],
			Region:                regions[i%len(regions)],
		}
	}
	return leads
}

// BuildQueryCases derives questions about a few leads together with the answers
// the generated knowledge base holds for them.
func BuildQueryCases(leads []generate.Lead) []QueryTestCase {
	var cases []QueryTestCase
	for i, l := range leads {
		if i%4 != 0 {
			continue
		}
		cases = append(cases,
			QueryTestCase{
				Query:       fmt.Sprintf("Which company does %s work for?", l.Name),
				WantAnswer:  fmt.Sprintf("%s is currently working at %s. Use this knowledge to build a targeted and relevant outreach strategy.", l.Name, l.Company),
				Description: "exact company question",
			},
			QueryTestCase{
				Query:       fmt.Sprintf("conversion probability of %s", l.Name),
				WantAnswer:  fmt.Sprintf("%s from %s has a conversion probability of %.4f. ", l.Name, l.Company, l.ConversionProbability),
				Description: "paraphrased conversion question",
			},
			QueryTestCase{
				Query:       fmt.Sprintf("What is the industry of %s?", l.Company),
				WantAnswer:  fmt.Sprintf("%s operates in the %s industry. Adapt your approach to align with industry expectations and trends for better engagement.", l.Company, l.Industry),
				Description: "industry by company",
			},
			QueryTestCase{
				Query:       fmt.Sprintf("What is the job title of %s?", l.Name),
				WantAnswer:  fmt.Sprintf("%s holds the position of %s at %s.", l.Name, l.JobTitle, l.Company),
				Description: "job title",
			},
		)
	}
	return cases
}
