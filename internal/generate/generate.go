// Package generate builds a question/answer knowledge base from a scored B2B leads dataset.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// Lead tiers relative to the dataset's mean conversion probability.
const (
	hotRecommendation      = "This is a hot lead — engage immediately to maximize impact. Success rates here are well above average, making it a prime target."
	warmRecommendation     = "This is a warm lead, suitable for nurturing through follow-up campaigns. Success rates are above average, offering good potential."
	moderateRecommendation = "This is a warm lead with moderate potential, monitor and optimize your outreach. Success rates are in line with the overall average."
	coolerRecommendation   = "This is a cooler lead, consider refining your targeting to uncover hidden opportunities. Success rates are slightly below average."
	coldRecommendation     = "This is a cold lead, better to deprioritize for now and re-evaluate later. Success rates are below average, indicating limited return on investment."
)

// Recommendation returns the outreach advice for a conversion probability given the dataset mean.
func Recommendation(value, mean float64) string {
	switch {
	case value > mean*1.2:
		return hotRecommendation
	case value > mean*1.05:
		return warmRecommendation
	case value >= mean*0.95:
		return moderateRecommendation
	case value >= mean*0.8:
		return coolerRecommendation
	default:
		return coldRecommendation
	}
}

var phraseSwaps = []struct{ from, to string }{
	{"potential", "prospective leads"},
	{"potential", "opportunities"},
	{"What is", "Tell me about"},
	{"What is", "How about"},
	{"What is", "Can you explain"},
	{"How many", "Could you tell me how many"},
	{"How many", "Do you know how many"},
}

// Variations returns question followed by its rephrasings, without duplicates, in a stable order.
func Variations(question string) []string {
	out := []string{question}
	seen := map[string]struct{}{question: {}}
	for _, s := range phraseSwaps {
		v := strings.ReplaceAll(question, s.from, s.to)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Generator turns leads into knowledge base records.
type Generator struct {
	logger *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger for the generator.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates a generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type builder struct {
	records []models.QARecord
}

func (b *builder) add(question, answer string, meta map[string]any) {
	for _, q := range Variations(question) {
		b.records = append(b.records, models.QARecord{Question: q, Answer: answer, Metadata: meta})
	}
}

// Generate produces per-lead and per-segment records. Questions about a field are
// skipped for leads where that field is empty.
func (g *Generator) Generate(leads []Lead) []models.QARecord {
	if len(leads) == 0 {
		return nil
	}
	var sum float64
	for _, l := range leads {
		sum += l.ConversionProbability
	}
	mean := sum / float64(len(leads))

	b := &builder{}
	for _, l := range leads {
		meta := func(kind string) map[string]any {
			return map[string]any{"kind": kind, "lead": l.Name, "company": l.Company}
		}

		b.add(fmt.Sprintf("What is the conversion probability of %s?", l.Name),
			fmt.Sprintf("%s from %s has a conversion probability of %.4f. %s",
				l.Name, l.Company, l.ConversionProbability, Recommendation(l.ConversionProbability, mean)),
			meta("conversion_probability"))

		companyAnswer := fmt.Sprintf("%s is currently working at %s. Use this knowledge to build a targeted and relevant outreach strategy.", l.Name, l.Company)
		for _, q := range []string{
			"Which company does %s work for?",
			"In which company is %s employed?",
			"What company is %s affiliated with?",
			"Can you tell me the company of %s?",
		} {
			b.add(fmt.Sprintf(q, l.Name), companyAnswer, meta("company"))
		}

		if l.JobTitle != "" {
			b.add(fmt.Sprintf("What is the job title of %s?", l.Name),
				fmt.Sprintf("%s holds the position of %s at %s. Tailor your messaging to address the specific priorities of this role and company.", l.Name, l.JobTitle, l.Company),
				meta("job_title"))
		}
		if l.Links != "" {
			b.add(fmt.Sprintf("What is the LinkedIn profile of %s?", l.Name),
				fmt.Sprintf("You can reach %s directly via LinkedIn: %s. Use this for personalized engagement.", l.Name, l.Links),
				meta("linkedin"))
		}
		if l.Employees != "" {
			b.add(fmt.Sprintf("How many employees does %s have?", l.Company),
				fmt.Sprintf("%s employs %s people. Adjust your proposals to reflect the scale and operational complexity of this organization.", l.Company, l.Employees),
				meta("employees"))
		}
		if l.Industry != "" {
			b.add(fmt.Sprintf("What is the industry of %s?", l.Company),
				fmt.Sprintf("%s operates in the %s industry. Adapt your approach to align with industry expectations and trends for better engagement.", l.Company, l.Industry),
				meta("industry"))
		}
	}

	for _, s := range segments(leads, mean) {
		b.add(fmt.Sprintf("For the job title '%s' in the %s industry in %s, what is the potential?", s.title, s.industry, s.region),
			fmt.Sprintf("In %s, within the %s industry, professionals with the title '%s' present %d opportunities, averaging a conversion rate of %.4f. %s",
				s.region, s.industry, s.title, s.aboveMean, s.mean, Recommendation(s.mean, mean)),
			map[string]any{"kind": "segment", "region": s.region, "industry": s.industry, "job_title": s.title})
	}

	g.logger.Info("generated knowledge base",
		zap.Int("leads", len(leads)), zap.Int("records", len(b.records)), zap.Float64("mean_conversion", mean))
	return b.records
}

type segment struct {
	region, industry, title string
	aboveMean               int
	mean                    float64
}

// segments groups leads by region, then industry, then job title, each in first-seen order.
// Leads missing any of the three are left out.
func segments(leads []Lead, globalMean float64) []segment {
	type key struct{ region, industry, title string }
	type agg struct {
		n, above int
		sum      float64
	}
	var regions, industries, titles []string
	seen := make(map[string]struct{})
	firstSeen := func(list *[]string, kind, v string) {
		if v == "" {
			return
		}
		k := kind + "\x00" + v
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		*list = append(*list, v)
	}
	groups := make(map[key]*agg)
	for _, l := range leads {
		firstSeen(&regions, "r", l.Region)
		firstSeen(&industries, "i", l.Industry)
		firstSeen(&titles, "t", l.JobTitle)
		if l.Region == "" || l.Industry == "" || l.JobTitle == "" {
			continue
		}
		k := key{l.Region, l.Industry, l.JobTitle}
		a, ok := groups[k]
		if !ok {
			a = &agg{}
			groups[k] = a
		}
		a.n++
		a.sum += l.ConversionProbability
		if l.ConversionProbability > globalMean {
			a.above++
		}
	}

	var out []segment
	for _, r := range regions {
		for _, i := range industries {
			for _, t := range titles {
				a, ok := groups[key{r, i, t}]
				if !ok {
					continue
				}
				out = append(out, segment{
					region: r, industry: i, title: t,
					aboveMean: a.above,
					mean:      a.sum / float64(a.n),
				})
			}
		}
	}
	return out
}

// WriteJSON writes records as an indented JSON array. The file is written to a temporary
// name and renamed so that watchers never see a partial file.
func WriteJSON(path string, records []models.QARecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kotae-qa-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move knowledge base into place: %w", err)
	}
	return nil
}

// Run reads the dataset at datasetPath, generates records and writes them to outPath.
// It returns the number of records written.
func (g *Generator) Run(ctx context.Context, datasetPath, outPath string) (int, error) {
	leads, err := ReadDataset(datasetPath)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	records := g.Generate(leads)
	if err := WriteJSON(outPath, records); err != nil {
		return 0, err
	}
	g.logger.Info("knowledge base written", zap.String("path", outPath), zap.Int("records", len(records)))
	return len(records), nil
}
