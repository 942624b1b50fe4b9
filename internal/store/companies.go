package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"b2b-analyst/internal/models"
)

// Company workbook headers.
const (
	ColCompany        = "거래처"
	ColIndustry       = "업종"
	ColIndustryDetail = "세부 업종"
	ColEmployeeCount  = "직원수"
	ColGrade          = "고객등급"
	ColRegion         = "시도"
	ColGrowthRate     = "연평균성장률"
)

var companyColumns = []string{ColCompany, ColIndustry, ColIndustryDetail, ColGrade, ColRegion}

// CompanyTable is the parsed company workbook. The Has* flags record whether
// the optional columns were present.
type CompanyTable struct {
	Rows             []models.Company
	HasEmployeeCount bool
	HasGrowthRate    bool
}

// LoadCompanies reads the company workbook at path. An empty sheet name
// selects the first sheet.
func LoadCompanies(path, sheet string) (CompanyTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return CompanyTable{}, fmt.Errorf("open company file: %w", err)
	}
	defer f.Close()

	table, err := readCompanySheet(f, sheet)
	if err != nil {
		return CompanyTable{}, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadCompanies parses a workbook from r.
func ReadCompanies(r io.Reader, sheet string) (CompanyTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return CompanyTable{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readCompanySheet(f, sheet)
}

func readCompanySheet(f *excelize.File, sheet string) (CompanyTable, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return CompanyTable{}, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	// Raw values keep stored numbers: a 0.125 cell formatted as a percentage
	// reads as 0.125, not "12.5%".
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return CompanyTable{}, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return CompanyTable{}, fmt.Errorf("sheet %q is empty", sheet)
	}

	index, err := columnIndex(rows[0], companyColumns)
	if err != nil {
		return CompanyTable{}, err
	}
	_, hasEmployees := index[ColEmployeeCount]
	_, hasGrowth := index[ColGrowthRate]

	table := CompanyTable{
		HasEmployeeCount: hasEmployees,
		HasGrowthRate:    hasGrowth,
	}

	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		employees := cell(ColEmployeeCount)
		growth := cell(ColGrowthRate)
		table.Rows = append(table.Rows, models.Company{
			Customer:         CleanName(cell(ColCompany)),
			Industry:         strings.TrimSpace(cell(ColIndustry)),
			IndustryDetail:   strings.TrimSpace(cell(ColIndustryDetail)),
			EmployeeCount:    CleanNumber(employees),
			HasEmployeeCount: strings.TrimSpace(employees) != "",
			Grade:            strings.TrimSpace(cell(ColGrade)),
			Region:           strings.TrimSpace(cell(ColRegion)),
			GrowthRate:       CleanPercentage(growth),
			HasGrowthRate:    strings.TrimSpace(growth) != "",
		})
	}

	return table, nil
}
