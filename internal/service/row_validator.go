package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/models"
)

// BirthDateSentinel is stored when a birth date is missing or unparseable.
var BirthDateSentinel = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var birthDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

var (
	maleAliases   = map[string]struct{}{"L": {}, "LK": {}, "LAKI": {}, "LAKI-LAKI": {}, "LAKI_LAKI": {}, "LAKI LAKI": {}, "PRIA": {}, "MALE": {}, "M": {}}
	femaleAliases = map[string]struct{}{"P": {}, "PR": {}, "PEREMPUAN": {}, "WANITA": {}, "FEMALE": {}, "F": {}}
)

// NormalizedRow is an import row after validation, with enums canonicalised.
type NormalizedRow struct {
	Line     int
	Student  NormalizedStudent
	Guardian NormalizedGuardian
}

// NormalizedStudent carries the trimmed student fields.
type NormalizedStudent struct {
	Name              string
	NISN              string
	NIS               string
	Gender            models.Gender
	Cohort            string
	ClassName         string
	AdmissionYearName string
	BirthDate         time.Time
	BirthDateKnown    bool
	Address           string
	Phone             string
}

// BirthYear returns the year of a parsed birth date, or 0 when it fell back to the sentinel.
func (s NormalizedStudent) BirthYear() int {
	if !s.BirthDateKnown {
		return 0
	}
	return s.BirthDate.Year()
}

// NormalizedGuardian carries the trimmed guardian fields.
type NormalizedGuardian struct {
	Relationship string
	Name         string
	Gender       models.Gender
	Phone        string
}

// RowValidator checks required fields in a fixed order and reports the first one missing.
type RowValidator struct {
	strictGender bool
}

// NewRowValidator builds a validator. With strictGender an unrecognised gender fails the row
// instead of defaulting to male.
func NewRowValidator(strictGender bool) *RowValidator {
	return &RowValidator{strictGender: strictGender}
}

type requiredField struct {
	label string
	value dto.FlexString
}

// Validate returns the normalized row or the first validation failure.
func (v *RowValidator) Validate(row dto.ImportRow) (NormalizedRow, *RowError) {
	s, g := row.Student, row.Guardian
	required := []requiredField{
		{"student name (nama)", s.Name},
		{"student NISN (nisn)", s.NISN},
		{"student NIS (nis)", s.NIS},
		{"student gender (jenisKelamin)", s.Gender},
		{"admission cohort (kelasAngkatan)", s.Cohort},
		{"class (kelas)", s.ClassName},
		{"admission academic year (tahunAjaranMasuk)", s.AdmissionYearName},
		{"guardian relationship (jenisWali)", g.Relationship},
		{"guardian name", g.Name},
		{"guardian gender", g.Gender},
		{"guardian phone (noHP)", g.Phone},
	}
	for _, f := range required {
		if f.value.Empty() {
			return NormalizedRow{}, v.invalid(row.Line, "%s is required", f.label)
		}
	}

	studentGender, ok := NormalizeGender(s.Gender.String())
	if !ok && v.strictGender {
		return NormalizedRow{}, v.invalid(row.Line, "unrecognized student gender %q", s.Gender.String())
	}
	guardianGender, ok := NormalizeGender(g.Gender.String())
	if !ok && v.strictGender {
		return NormalizedRow{}, v.invalid(row.Line, "unrecognized guardian gender %q", g.Gender.String())
	}

	birthDate, known := ParseBirthDate(s.BirthDate.String())

	return NormalizedRow{
		Line: row.Line,
		Student: NormalizedStudent{
			Name:              s.Name.String(),
			NISN:              s.NISN.String(),
			NIS:               s.NIS.String(),
			Gender:            studentGender,
			Cohort:            s.Cohort.String(),
			ClassName:         s.ClassName.String(),
			AdmissionYearName: s.AdmissionYearName.String(),
			BirthDate:         birthDate,
			BirthDateKnown:    known,
			Address:           s.Address.String(),
			Phone:             s.Phone.String(),
		},
		Guardian: NormalizedGuardian{
			Relationship: NormalizeRelationship(g.Relationship.String()),
			Name:         g.Name.String(),
			Gender:       guardianGender,
			Phone:        g.Phone.String(),
		},
	}, nil
}

func (v *RowValidator) invalid(line int, format string, args ...interface{}) *RowError {
	return &RowError{Kind: RowErrValidation, Line: line, Message: fmt.Sprintf(format, args...)}
}

// NormalizeGender maps Indonesian and English spellings onto the two-valued enum.
// Unrecognised input yields GenderMale with ok=false.
func NormalizeGender(raw string) (models.Gender, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if _, ok := maleAliases[key]; ok {
		return models.GenderMale, true
	}
	if _, ok := femaleAliases[key]; ok {
		return models.GenderFemale, true
	}
	return models.GenderMale, false
}

// NormalizeRelationship canonicalises common father/mother/guardian labels and keeps anything else as typed.
func NormalizeRelationship(raw string) string {
	trimmed := strings.Join(strings.Fields(raw), " ")
	switch strings.ToUpper(trimmed) {
	case "AYAH", "BAPAK", "BAPAK KANDUNG", "FATHER":
		return "Ayah"
	case "IBU", "IBU KANDUNG", "MOTHER":
		return "Ibu"
	case "WALI", "GUARDIAN":
		return "Wali"
	}
	return trimmed
}

// ParseBirthDate accepts ISO and day-first dates, RFC3339 and Excel serial day numbers.
// Anything else returns BirthDateSentinel and false.
func ParseBirthDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BirthDateSentinel, false
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial < 1 || serial > 2958465 || len(raw) >= 8 && !strings.Contains(raw, ".") {
			return BirthDateSentinel, false
		}
		days := math.Floor(serial)
		return plausible(excelEpoch.AddDate(0, 0, int(days)))
	}
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return plausible(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
	return BirthDateSentinel, false
}

func plausible(t time.Time) (time.Time, bool) {
	if t.Year() < 1900 || t.After(time.Now().UTC()) {
		return BirthDateSentinel, false
	}
	return t, true
}
