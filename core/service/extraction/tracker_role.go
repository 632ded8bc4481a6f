package extraction

import (
	"regexp"
	"strings"

	"tracker_server/core/domain"
)

// rolePatterns run most specific first.
var rolePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(full stack engineer|backend engineer|frontend engineer)`),
	regexp.MustCompile(`(software engineer|sde[- ]?[1-3])`),
	regexp.MustCompile(`(data analyst|business analyst)`),
	regexp.MustCompile(`(machine learning engineer|ml engineer)`),
	regexp.MustCompile(`\b(intern|trainee)\b`),
	regexp.MustCompile(`\b(developer|engineer|analyst|manager|consultant)\b`),
}

// ExtractRole searches subject and text (snippet or decoded body).
func ExtractRole(subject, text string) domain.Entity {
	haystack := strings.ToLower(subject + " " + text)

	for _, re := range rolePatterns {
		if m := re.FindStringSubmatch(haystack); m != nil {
			return domain.Entity{Value: TitleCase(m[1]), Confidence: confidenceRole, Source: domain.EntitySourceEmail}
		}
	}
	return domain.UnknownEntity()
}

// ExtractRoleFromMessage uses subject and snippet.
func ExtractRoleFromMessage(msg *domain.MailMessage) domain.Entity {
	if msg == nil {
		return domain.UnknownEntity()
	}
	return ExtractRole(msg.Subject, msg.Snippet)
}
