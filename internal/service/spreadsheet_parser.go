package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/models"
	appErrors "github.com/noah-isme/tahfidz-admin-api/pkg/errors"
)

type column string

const (
	colName             column = "nama"
	colNISN             column = "nisn"
	colNIS              column = "nis"
	colGender           column = "jenisKelamin"
	colBirthDate        column = "tanggalLahir"
	colAddress          column = "alamat"
	colPhone            column = "noHP"
	colClass            column = "kelas"
	colCohort           column = "kelasAngkatan"
	colAdmissionYear    column = "tahunAjaranMasuk"
	colFatherName       column = "namaAyah"
	colMotherName       column = "namaIbu"
	colGuardianName     column = "namaWali"
	colGuardianGender   column = "jenisKelaminWali"
	colGuardianPhone    column = "noHPWali"
	colGuardianRelation column = "jenisWali"
)

// headerAliases lists accepted spellings per column in priority order. Aliases never overlap
// between columns so "jenis kelamin" cannot be mistaken for "jenis kelamin wali".
var headerAliases = []struct {
	col     column
	aliases []string
}{
	{colName, []string{"nama", "nama siswa", "nama lengkap siswa"}},
	{colNISN, []string{"nisn"}},
	{colNIS, []string{"nis lokal", "nis"}},
	{colGender, []string{"jenis kelamin", "jk"}},
	{colBirthDate, []string{"tgl lahir", "tanggal lahir"}},
	{colAddress, []string{"alamat siswa", "alamat"}},
	{colPhone, []string{"no hp siswa", "no hp", "nomor hp"}},
	{colClass, []string{"kelas saat ini", "kelas"}},
	{colCohort, []string{"diterima di kelas", "kelas angkatan", "angkatan"}},
	{colAdmissionYear, []string{"tahun ajaran masuk", "ta masuk"}},
	{colFatherName, []string{"nama ayah"}},
	{colMotherName, []string{"nama ibu"}},
	{colGuardianName, []string{"nama wali"}},
	{colGuardianGender, []string{"jenis kelamin wali", "jk wali"}},
	{colGuardianPhone, []string{"no hp wali", "no hp orang tua", "no hp ortu", "telepon wali"}},
	{colGuardianRelation, []string{"jenis wali", "hubungan wali", "hubungan"}},
}

var (
	headerSpaces  = regexp.MustCompile(`\s+`)
	headerSymbols = regexp.MustCompile(`[^a-z0-9 ]`)
)

// SpreadsheetParser turns an uploaded .xlsx or .csv sheet into import rows.
type SpreadsheetParser struct{}

// NewSpreadsheetParser constructs a SpreadsheetParser.
func NewSpreadsheetParser() *SpreadsheetParser {
	return &SpreadsheetParser{}
}

// Parse reads the first sheet, maps the header row through the alias table and returns one row
// per non-blank data line. Each row carries its 1-based sheet line number.
func (p *SpreadsheetParser) Parse(filename string, r io.Reader) ([]dto.ImportRow, error) {
	var (
		records []sheetRow
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(r)
	case ".csv":
		records, err = readCSV(r)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "file must be .xlsx or .csv")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read spreadsheet")
	}
	if len(records) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet needs a header row and at least one data row")
	}

	index := mapHeaders(records[0].cells)
	if _, ok := index[colName]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no student name column")
	}

	rows := make([]dto.ImportRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if blankRecord(record.cells) {
			continue
		}
		cells := record.cells
		cell := func(c column) dto.FlexString {
			pos, ok := index[c]
			if !ok || pos >= len(cells) {
				return ""
			}
			return dto.FlexString(strings.TrimSpace(cells[pos]))
		}
		row := dto.ImportRow{
			Line: record.line,
			Student: dto.StudentInput{
				Name:              cell(colName),
				NISN:              cell(colNISN),
				NIS:               cell(colNIS),
				Gender:            cell(colGender),
				Cohort:            cell(colCohort),
				ClassName:         cell(colClass),
				AdmissionYearName: cell(colAdmissionYear),
				BirthDate:         cell(colBirthDate),
				Address:           cell(colAddress),
				Phone:             cell(colPhone),
			},
			Guardian: guardianFromCells(cell),
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no data rows")
	}
	return rows, nil
}

// guardianFromCells picks the generic guardian columns first, then father, then mother.
// An explicit relationship column always wins.
func guardianFromCells(cell func(column) dto.FlexString) dto.GuardianInput {
	g := dto.GuardianInput{Phone: cell(colGuardianPhone)}
	switch {
	case !cell(colGuardianName).Empty():
		// a generic guardian column is a father unless the gender column says otherwise
		g.Name = cell(colGuardianName)
		g.Relationship = "Ayah"
		g.Gender = dto.FlexString(models.GenderMale)
		if gender, ok := NormalizeGender(cell(colGuardianGender).String()); ok && gender == models.GenderFemale {
			g.Relationship = "Ibu"
			g.Gender = dto.FlexString(gender)
		}
	case !cell(colFatherName).Empty():
		g.Name = cell(colFatherName)
		g.Relationship = "Ayah"
		g.Gender = dto.FlexString(models.GenderMale)
	case !cell(colMotherName).Empty():
		g.Name = cell(colMotherName)
		g.Relationship = "Ibu"
		g.Gender = dto.FlexString(models.GenderFemale)
	}
	if rel := cell(colGuardianRelation); !rel.Empty() {
		g.Relationship = rel
	}
	return g
}

func mapHeaders(headers []string) map[column]int {
	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, seen := positions[key]; !seen && key != "" {
			positions[key] = i
		}
	}
	index := make(map[column]int, len(headerAliases))
	for _, entry := range headerAliases {
		for _, alias := range entry.aliases {
			if pos, ok := positions[alias]; ok {
				index[entry.col] = pos
				break
			}
		}
	}
	return index
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = headerSpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), " ")
	return strings.TrimSpace(headerSymbols.ReplaceAllString(h, ""))
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sheetRow is one record together with the line it starts on.
type sheetRow struct {
	line  int
	cells []string
}

func readWorkbook(r io.Reader) ([]sheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	// raw values keep date cells as serial numbers and identifiers without number formatting
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	records := make([]sheetRow, len(rows))
	for i, cells := range rows {
		records[i] = sheetRow{line: i + 1, cells: cells}
	}
	return records, nil
}

func readCSV(r io.Reader) ([]sheetRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	var records []sheetRow
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, sheetRow{line: line, cells: cells})
	}
}
