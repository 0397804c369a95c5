package e2e

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/generate"
	"github.com/xuri/excelize/v2"
)

// DatasetExtensions lists the dataset formats the generator reads.
var DatasetExtensions = []string{".csv", ".xlsx"}

var datasetHeader = []string{
	generate.ColName,
	generate.ColCompany,
	generate.ColProbability,
	generate.ColJobTitle,
	generate.ColLinks,
	generate.ColEmployees,
	generate.ColIndustry,
	generate.ColRegion,
}

func leadRow(l generate.Lead) []string {
	return []string{
		l.Name,
		l.Company,
		strconv.FormatFloat(l.ConversionProbability, 'f', -1, 64),
		l.JobTitle,
		l.Links,
		l.Employees,
		l.Industry,
		l.Region,
	}
}

// WriteDataset writes leads to path as CSV or XLSX depending on its extension.
func WriteDataset(path string, leads []generate.Lead) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return writeCSV(path, leads)
	case ".xlsx":
		return writeXLSX(path, leads)
	default:
		return fmt.Errorf("unsupported dataset extension %q", ext)
	}
}

func writeCSV(path string, leads []generate.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(datasetHeader); err != nil {
		f.Close()
		return err
	}
	for _, l := range leads {
		if err := w.Write(leadRow(l)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(path string, leads []generate.Lead) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(datasetHeader))
	for i, h := range datasetHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, l := range leads {
		cells := leadRow(l)
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
