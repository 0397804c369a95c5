package generate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Dataset column headers, matched case-insensitively.
const (
	ColName        = "Name"
	ColCompany     = "Company"
	ColProbability = "Conversion Probability"
	ColJobTitle    = "Job title"
	ColLinks       = "Links"
	ColEmployees   = "Number of employees"
	ColIndustry    = "Industry"
	ColRegion      = "Region"
)

var requiredColumns = []string{ColName, ColCompany, ColProbability}

// Lead is one row of the scored leads dataset.
type Lead struct {
	Name                  string
	Company               string
	ConversionProbability float64
	JobTitle              string
	Links                 string
	Employees             string
	Industry              string
	Region                string
}

// ReadDataset reads leads from a .csv or .xlsx file (first sheet).
func ReadDataset(path string) ([]Lead, error) {
	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported dataset extension %q (supported: .csv, .xlsx)", ext)
	}
	if err != nil {
		return nil, err
	}
	return ParseRows(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// ParseRows converts a header row plus data rows into leads. Blank rows are skipped.
func ParseRows(rows [][]string) ([]Lead, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[strings.ToLower(name)]; !ok {
			return nil, fmt.Errorf("dataset is missing required column %q", name)
		}
	}
	get := func(row []string, name string) string {
		i, ok := cols[strings.ToLower(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var leads []Lead
	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		line := n + 2
		lead := Lead{
			Name:      get(row, ColName),
			Company:   get(row, ColCompany),
			JobTitle:  get(row, ColJobTitle),
			Links:     get(row, ColLinks),
			Employees: get(row, ColEmployees),
			Industry:  get(row, ColIndustry),
			Region:    get(row, ColRegion),
		}
		if lead.Name == "" || lead.Company == "" {
			return nil, fmt.Errorf("row %d: %s and %s are required", line, ColName, ColCompany)
		}
		p, err := strconv.ParseFloat(get(row, ColProbability), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", line, ColProbability, err)
		}
		lead.ConversionProbability = p
		leads = append(leads, lead)
	}
	if len(leads) == 0 {
		return nil, fmt.Errorf("dataset has no leads")
	}
	return leads, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
