// Package knowledge formats the school's course catalog, branch list, and FAQ
// into the DriveBot system prompt. Data ships embedded and is loaded once.
package knowledge

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/wvdi-ph/drivebot/pkg/logging"
)

//go:embed data/*.json
var dataFS embed.FS

// Course is one catalog entry. Title or Vehicle names it; zero Price means
// "contact for pricing".
type Course struct {
	Group   string `json:"group"`
	Title   string `json:"title"`
	Vehicle string `json:"vehicle"`
	Price   int    `json:"price"`
	Hours   int    `json:"hours"`
	Note    string `json:"note"`
}

// Branch is one office location.
type Branch struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Phones  []string `json:"phones"`
}

// FAQItem is one question/answer pair.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Base holds the formatted knowledge sections, built once and shared
// read-only across requests.
type Base struct {
	courses  string
	branches string
	faq      string
}

var (
	loadOnce   sync.Once
	loadedBase *Base
)

// Load returns the process-wide knowledge base, parsing the embedded data on
// first use. A malformed data file logs an error and yields an empty section
// rather than failing the request path.
func Load(logger *logging.Logger) *Base {
	loadOnce.Do(func() {
		if logger == nil {
			logger = logging.Default()
		}

		var courses []Course
		var branches []Branch
		var faq []FAQItem
		loadJSON(logger, "data/courses.json", &courses)
		loadJSON(logger, "data/branches.json", &branches)
		loadJSON(logger, "data/faq.json", &faq)

		loadedBase = &Base{
			courses:  formatCourses(courses),
			branches: formatBranches(branches),
			faq:      formatFAQ(faq),
		}
	})
	return loadedBase
}

func loadJSON(logger *logging.Logger, name string, out any) {
	content, err := dataFS.ReadFile(name)
	if err != nil {
		logger.Error("failed to read knowledge file", "file", name, "error", err)
		return
	}
	if err := json.Unmarshal(content, out); err != nil {
		logger.Error("failed to parse knowledge file", "file", name, "error", err)
	}
}

var courseGroups = []struct {
	id   string
	name string
}{
	{"theoretical", "Theoretical Courses"},
	{"practical", "Practical Driving Courses (LTO-required PDC)"},
	{"driving-lessons", "Driving Lesson Packages"},
	{"other", "Other Services"},
}

func formatCourses(courses []Course) string {
	var b strings.Builder

	for _, group := range courseGroups {
		var inGroup []Course
		for _, c := range courses {
			if c.Group == group.id {
				inGroup = append(inGroup, c)
			}
		}
		if len(inGroup) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n%s:\n", group.name)
		for _, c := range inGroup {
			title := c.Title
			if title == "" {
				title = c.Vehicle
			}
			if title == "" {
				title = "Unknown"
			}
			price := "Contact for pricing"
			if c.Price > 0 {
				price = fmt.Sprintf("PHP %s", formatThousands(c.Price))
			}
			hours := ""
			if c.Hours > 0 {
				hours = fmt.Sprintf(" (%d hours)", c.Hours)
			}
			fmt.Fprintf(&b, "- %s%s: %s\n", title, hours, price)
			if c.Note != "" {
				fmt.Fprintf(&b, "  Note: %s\n", c.Note)
			}
		}
	}

	return b.String()
}

func formatBranches(branches []Branch) string {
	var b strings.Builder
	b.WriteString("\nBranch Locations:\n")
	for _, branch := range branches {
		fmt.Fprintf(&b, "\n%s:\n", branch.Name)
		fmt.Fprintf(&b, "- Address: %s\n", branch.Address)
		fmt.Fprintf(&b, "- Phone: %s\n", strings.Join(branch.Phones, " / "))
	}
	return b.String()
}

func formatFAQ(faq []FAQItem) string {
	var b strings.Builder
	b.WriteString("\nFrequently Asked Questions:\n")
	for _, item := range faq {
		fmt.Fprintf(&b, "\nQ: %s\n", item.Question)
		fmt.Fprintf(&b, "A: %s\n", item.Answer)
	}
	return b.String()
}

// formatThousands renders 13500 as "13,500".
func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// SystemPrompt renders the full DriveBot instruction block for one chat turn.
// The output-format section matches the structured reply the orchestrator
// parses out of JSON-mode responses.
func (b *Base) SystemPrompt(language string) string {
	if language == "" {
		language = "en"
	}

	return fmt.Sprintf(`You are DriveBot, a friendly and helpful assistant for Western Visayas Driving Institute (WVDI).

IMPORTANT INSTRUCTIONS:
- Always be polite, professional, and helpful
- Respond in the user's language (currently: %s)
- Provide accurate information based on the knowledge below
- If you don't know something, suggest contacting WVDI directly
- When users provide contact info (name, phone, email), acknowledge receipt
- Encourage inquiries about courses and help users choose the right package
- Mention our "2 Hours Free" promo when discussing driving lesson packages

ABOUT WVDI:
- LTO accredited driving school since 2009
- First to offer FREE class lectures: Defensive Driving, Preventive Maintenance, and Hands-On Car Maintenance
- Office hours: 8 AM - 7 PM, Monday to Sunday
- Email: info@wvdi-ph.com
- Special promo: 2 Hours Free with driving lesson packages!
%s
%s
%s
LEAD COLLECTION:
- If users ask about enrolling, booking, or pricing, offer to help them get started
- Politely ask for their name and preferred contact method (phone or email)
- Ask what course or service they're interested in
- Let them know someone will contact them to confirm their booking

OUTPUT FORMAT:
Always answer with a single JSON object, no surrounding text:
{"response": "<your reply to the user>", "extractedLead": {"name": "...", "phone": "...", "email": "...", "services": ["..."], "callbackTime": "..."}}
Omit extractedLead fields you have not learned from the conversation. Leave extractedLead as an empty object when the user has shared nothing yet.

Remember: Be concise but informative. Keep responses under 200 words unless detailed information is requested.`,
		language, b.branches, b.courses, b.faq)
}
