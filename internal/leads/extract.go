package leads

import (
	"regexp"
	"strings"
)

// Philippine phone patterns, most specific first. Mobile numbers with or
// without the +63 country prefix, the same with spaces or dashes, then
// landlines like (02) 1234 5678.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:\+63|0)9\d{9}`),
	regexp.MustCompile(`(?:\+63|0)9\d{2}[\s-]?\d{3}[\s-]?\d{4}`),
	regexp.MustCompile(`\(?\d{2,4}\)?[\s-]?\d{3,4}[\s-]?\d{4}`),
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Introduction phrases. First pattern that matches wins; the capture group is
// the candidate name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:my name is|i'm|i am|this is)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`(?i)(?:name|call me)\s*[:\s]+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
}

type serviceKeyword struct {
	keyword string
	label   string
}

// Keyword to canonical service label table. Several keywords map to the same
// label; matches are deduplicated through the set union in ExtractServices.
var serviceKeywords = []serviceKeyword{
	{"tdc", "TDC (Theoretical Driving Course)"},
	{"theoretical", "TDC (Theoretical Driving Course)"},
	{"practical", "Practical Driving Course (PDC)"},
	{"pdc", "Practical Driving Course (PDC)"},
	{"beginner", "Beginner Package"},
	{"master", "Master Package"},
	{"refresher", "Refresher Course"},
	{"motorcycle", "Motorcycle Training"},
	{"car", "Car/Motor Vehicle Training"},
	{"renewal", "License Renewal"},
	{"international", "International License"},
	{"defensive", "Defensive Driving"},
	{"corporate", "Corporate Training"},
	{"assessment", "Driving Assessment"},
	{"student permit", "Student Permit"},
	{"license", "License-related Service"},
}

var phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// ExtractPhones pulls phone numbers out of free text, normalized to bare digit
// strings (spaces, dashes, and parentheses removed) and deduplicated. The
// looser patterns can re-match a fragment of a number an earlier pattern
// already caught, so overlapping candidates are dropped, not just exact
// duplicates.
func ExtractPhones(text string) []string {
	var phones []string

	for _, pattern := range phonePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			normalized := phoneStripper.Replace(match)
			if overlapsKnown(phones, normalized) {
				continue
			}
			phones = append(phones, normalized)
		}
	}

	return phones
}

func overlapsKnown(phones []string, candidate string) bool {
	for _, phone := range phones {
		if strings.Contains(phone, candidate) || strings.Contains(candidate, phone) {
			return true
		}
	}
	return false
}

// ExtractEmails pulls email addresses out of free text, lower-cased and
// deduplicated.
func ExtractEmails(text string) []string {
	var emails []string
	seen := make(map[string]struct{})

	for _, match := range emailPattern.FindAllString(text, -1) {
		lowered := strings.ToLower(match)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		emails = append(emails, lowered)
	}

	return emails
}

// ExtractName looks for an introduction phrase and returns the trimmed capture
// of the first pattern that matches, or "" when nothing looks like a name.
func ExtractName(text string) string {
	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 && m[1] != "" {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// ExtractServices scans the lower-cased text for known service keywords and
// returns the canonical labels, deduplicated.
func ExtractServices(text string) []string {
	var services []string
	seen := make(map[string]struct{})
	lowered := strings.ToLower(text)

	for _, entry := range serviceKeywords {
		if !strings.Contains(lowered, entry.keyword) {
			continue
		}
		if _, ok := seen[entry.label]; ok {
			continue
		}
		seen[entry.label] = struct{}{}
		services = append(services, entry.label)
	}

	return services
}

// ExtractLead runs every heuristic over one message and returns the partial
// lead it implies. Extraction cannot fail; no matches yields an empty lead.
func ExtractLead(text string) Lead {
	return Lead{
		Name:     ExtractName(text),
		Phones:   ExtractPhones(text),
		Emails:   ExtractEmails(text),
		Services: ExtractServices(text),
	}
}
