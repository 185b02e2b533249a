package service

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	defaultStudentDomain  = "siswa.tahfidz.sch.id"
	defaultGuardianDomain = "wali.tahfidz.sch.id"
	fallbackLocalPart     = "user"
)

// IdentityDeriver computes login emails and initial passwords. Every method is pure.
type IdentityDeriver struct {
	studentDomain  string
	guardianDomain string
}

// NewIdentityDeriver builds a deriver. The two domains must differ so student and guardian
// addresses can never collide.
func NewIdentityDeriver(studentDomain, guardianDomain string) (*IdentityDeriver, error) {
	studentDomain = normalizeDomain(studentDomain, defaultStudentDomain)
	guardianDomain = normalizeDomain(guardianDomain, defaultGuardianDomain)
	if studentDomain == guardianDomain {
		return nil, fmt.Errorf("student and guardian email domains must differ, both are %q", studentDomain)
	}
	return &IdentityDeriver{studentDomain: studentDomain, guardianDomain: guardianDomain}, nil
}

// StudentEmail returns firstname.localid@student-domain.
func (d *IdentityDeriver) StudentEmail(name, localID string) string {
	return localPart(name, localID) + "@" + d.studentDomain
}

// GuardianEmail returns firstname.localid@guardian-domain.
func (d *IdentityDeriver) GuardianEmail(name, localID string) string {
	return localPart(name, localID) + "@" + d.guardianDomain
}

// StudentPassword is the national ID verbatim.
func (d *IdentityDeriver) StudentPassword(nationalID string) string {
	return strings.TrimSpace(nationalID)
}

// GuardianPassword is nationalID-birthYear, or the national ID alone when the year is unknown.
func (d *IdentityDeriver) GuardianPassword(nationalID string, birthYear int) string {
	nationalID = strings.TrimSpace(nationalID)
	if birthYear <= 0 {
		return nationalID
	}
	return fmt.Sprintf("%s-%d", nationalID, birthYear)
}

// WithDisambiguator inserts token before the domain: budi.s1@d becomes budi.s1.x7k2@d.
func WithDisambiguator(email, token string) string {
	token = sanitizeToken(token)
	if token == "" {
		return email
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return email + "." + token
	}
	return email[:at] + "." + token + email[at:]
}

func localPart(name, localID string) string {
	first := ""
	if fields := strings.Fields(name); len(fields) > 0 {
		first = sanitizeToken(fields[0])
	}
	if first == "" {
		first = fallbackLocalPart
	}
	id := sanitizeToken(localID)
	if id == "" {
		return first
	}
	return first + "." + id
}

func sanitizeToken(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeDomain(domain, fallback string) string {
	domain = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(domain), "@")))
	if domain == "" {
		return fallback
	}
	return domain
}
