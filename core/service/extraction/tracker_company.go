// Package extraction pulls company and role entities out of email metadata.
package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"tracker_server/core/domain"
)

const (
	confidenceSubject = 0.75
	confidenceSnippet = 0.7
	confidenceSender  = 0.6
	confidenceRole    = 0.65
)

var (
	subjectCompanyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sent to ([a-z0-9 &.-]+)`),
		regexp.MustCompile(`\bat ([a-z0-9 &.-]+)`),
	}
	// "Acme Corp · Bengaluru" style platform snippets.
	snippetCompanyPattern = regexp.MustCompile(`^([a-z0-9 &.-]+)\s·`)
	senderDomainPattern   = regexp.MustCompile(`@([a-z0-9-]+)\.`)
)

// genericSenderDomains never name the hiring company.
var genericSenderDomains = map[string]struct{}{
	"linkedin":        {},
	"gmail":           {},
	"google":          {},
	"internshala":     {},
	"naukri":          {},
	"foundit":         {},
	"monster":         {},
	"indeed":          {},
	"glassdoor":       {},
	"jobs":            {},
	"greenhouse":      {},
	"lever":           {},
	"workday":         {},
	"myworkday":       {},
	"icims":           {},
	"smartrecruiters": {},
	"ashbyhq":         {},
	"outlook":         {},
	"hotmail":         {},
	"yahoo":           {},
}

// ExtractCompany tries the subject, then the snippet, then the sender domain.
func ExtractCompany(msg *domain.MailMessage) domain.Entity {
	if msg == nil {
		return domain.UnknownEntity()
	}

	subject := strings.ToLower(msg.Subject)
	for _, re := range subjectCompanyPatterns {
		if v, ok := firstGroup(re, subject); ok {
			return domain.Entity{Value: v, Confidence: confidenceSubject, Source: domain.EntitySourceEmail}
		}
	}

	if v, ok := firstGroup(snippetCompanyPattern, strings.ToLower(msg.Snippet)); ok {
		return domain.Entity{Value: v, Confidence: confidenceSnippet, Source: domain.EntitySourceEmail}
	}

	if m := senderDomainPattern.FindStringSubmatch(strings.ToLower(msg.From)); m != nil {
		if _, generic := genericSenderDomains[m[1]]; !generic {
			if v := TitleCase(m[1]); v != "" {
				return domain.Entity{Value: v, Confidence: confidenceSender, Source: domain.EntitySourceEmail}
			}
		}
	}

	return domain.UnknownEntity()
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	v := TitleCase(m[1])
	return v, v != ""
}

// TitleCase trims s and upper-cases the first rune of every whitespace
// separated token.
func TitleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		r, size := utf8.DecodeRuneInString(f)
		fields[i] = string(unicode.ToUpper(r)) + f[size:]
	}
	return strings.Join(fields, " ")
}
