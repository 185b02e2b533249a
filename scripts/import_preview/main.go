package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/tahfidz-admin-api/internal/dto"
	"github.com/noah-isme/tahfidz-admin-api/internal/service"
)

// import_preview checks a roster sheet before it is uploaded: every row is parsed and validated
// locally, and with -api the rows are also sent to the server as a dry run (autoCreateAccount=false)
// so class, academic year and duplicate problems surface without creating accounts.
func main() {
	var (
		file         string
		apiBase      string
		token        string
		strictGender bool
		timeout      time.Duration
	)

	flag.StringVar(&file, "file", "", "Path to the .xlsx or .csv roster")
	flag.StringVar(&apiBase, "api", "", "API base URL including prefix, e.g. http://localhost:8080/api/v1 (optional)")
	flag.StringVar(&token, "token", os.Getenv("TAHFIDZ_ADMIN_TOKEN"), "Admin bearer token for -api")
	flag.BoolVar(&strictGender, "strict-gender", false, "Fail rows with an unrecognised gender")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "HTTP client timeout")
	flag.Parse()

	if file == "" {
		log.Fatal("-file is required")
	}

	rows, err := parseFile(file)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", file, err)
	}

	invalid := validateRows(rows, service.NewRowValidator(strictGender))
	fmt.Printf("Rows: %d, locally invalid: %d\n", len(rows), invalid)

	if apiBase == "" {
		if invalid > 0 {
			os.Exit(1)
		}
		return
	}

	client := &http.Client{Timeout: timeout}
	resp, err := dryRun(client, apiBase, token, rows)
	if err != nil {
		log.Fatalf("dry run failed: %v", err)
	}
	printServerReport(resp)
	if invalid > 0 || resp.Stats.Failed > 0 || resp.Stats.Duplicate > 0 {
		os.Exit(1)
	}
}

func parseFile(path string) ([]dto.ImportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return service.NewSpreadsheetParser().Parse(filepath.Base(path), f)
}

func validateRows(rows []dto.ImportRow, validator *service.RowValidator) int {
	invalid := 0
	for _, row := range rows {
		normalized, rowErr := validator.Validate(row)
		if rowErr != nil {
			invalid++
			fmt.Printf("[INVALID] %s\n", rowErr.Error())
			continue
		}
		birth := "unknown"
		if normalized.Student.BirthDateKnown {
			birth = normalized.Student.BirthDate.Format("2006-01-02")
		}
		fmt.Printf("[OK] Row %d: %s (NIS %s, %s), guardian %s %s, born %s\n",
			normalized.Line,
			normalized.Student.Name,
			normalized.Student.NIS,
			normalized.Student.ClassName,
			normalized.Guardian.Relationship,
			normalized.Guardian.Name,
			birth,
		)
	}
	return invalid
}

func dryRun(client *http.Client, base, token string, rows []dto.ImportRow) (*dto.StudentImportResponse, error) {
	autoCreate := false
	payload, err := json.Marshal(dto.StudentImportRequest{Data: rows, AutoCreateAccount: &autoCreate})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(base, "/") + "/admin/students/import"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var out dto.StudentImportResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func printServerReport(resp *dto.StudentImportResponse) {
	fmt.Println("Server Dry Run")
	fmt.Println("==============")
	fmt.Printf("  %s\n", resp.Message)
	fmt.Printf("  Validated: %d | Failed: %d | Duplicate: %d | Total: %d\n",
		resp.Stats.Validated, resp.Stats.Failed, resp.Stats.Duplicate, resp.Stats.Total)
	for _, line := range resp.Errors {
		fmt.Printf("  - %s\n", line)
	}
	if resp.ErrorsTruncated {
		fmt.Println("  (more errors were truncated)")
	}
}
