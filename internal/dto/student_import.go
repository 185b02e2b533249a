package dto

// StudentImportRequest is the JSON body of POST /admin/students/import.
type StudentImportRequest struct {
	Data              []ImportRow `json:"data"`
	AutoCreateAccount *bool       `json:"autoCreateAccount,omitempty"`
}

// AutoCreate resolves the optional flag; accounts are created unless explicitly disabled.
func (r StudentImportRequest) AutoCreate() bool {
	return r.AutoCreateAccount == nil || *r.AutoCreateAccount
}

// ImportRow pairs one student with their guardian.
type ImportRow struct {
	Student  StudentInput  `json:"student"`
	Guardian GuardianInput `json:"orangtua"`
	// Line is the display row number; spreadsheet uploads carry the sheet row, JSON rows use index+1.
	Line int `json:"-"`
}

// StudentInput mirrors the student half of an import row.
type StudentInput struct {
	Name              FlexString `json:"nama"`
	NISN              FlexString `json:"nisn"`
	NIS               FlexString `json:"nis"`
	Gender            FlexString `json:"jenisKelamin"`
	Cohort            FlexString `json:"kelasAngkatan"`
	ClassName         FlexString `json:"kelas"`
	AdmissionYearName FlexString `json:"tahunAjaranMasuk"`
	BirthDate         FlexString `json:"tanggalLahir"`
	Address           FlexString `json:"alamat"`
	Phone             FlexString `json:"noHP"`
}

// GuardianInput mirrors the guardian half of an import row.
type GuardianInput struct {
	Relationship FlexString `json:"jenisWali"`
	Name         FlexString `json:"nama"`
	Gender       FlexString `json:"jenisKelamin"`
	Phone        FlexString `json:"noHP"`
}

// StudentImportResponse keeps the legacy body shape consumed by the admin UI.
type StudentImportResponse struct {
	Message         string       `json:"message"`
	Stats           ImportStats  `json:"stats"`
	NewAccounts     []NewAccount `json:"newAccounts"`
	Errors          []string     `json:"errors"`
	ErrorsTruncated bool         `json:"errorsTruncated"`
	Cancelled       bool         `json:"cancelled,omitempty"`
	ReportURL       string       `json:"reportUrl,omitempty"`
}

// ImportStats counts row outcomes. success+failed+duplicate+validated+skipped always equals total.
type ImportStats struct {
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Duplicate int `json:"duplicate"`
	Total     int `json:"total"`
	Validated int `json:"validated"`
	Skipped   int `json:"skipped"`

	CreatedStudents  int `json:"createdStudents"`
	CreatedGuardians int `json:"createdGuardians"`
	ReusedGuardians  int `json:"reusedGuardians"`
	CreatedLinks     int `json:"createdLinks"`
}

// NewAccount is a credential summary surfaced once for distribution.
type NewAccount struct {
	Name     string `json:"nama" validate:"required"`
	Role     string `json:"role" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Note     string `json:"keterangan"`
}

// CredentialExportRequest carries the accounts returned by an import back for rendering.
type CredentialExportRequest struct {
	Accounts []NewAccount `json:"newAccounts" validate:"required,min=1,dive"`
}
