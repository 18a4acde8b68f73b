package workflow

import (
	"regexp"
	"strings"
)

// Reply grammar for the structured model outputs. Every parser is total:
// an unexpected reply resolves to a documented default and never fails.

const (
	confidenceExact = 0.9
	confidenceLoose = 0.7

	// AntiDeadlockIssue replaces an empty issue list on a rejected review.
	AntiDeadlockIssue = "Minor review - approved with suggestions"
	// RevisionLimitIssue is appended when the revision ceiling forces approval.
	RevisionLimitIssue = "Revision limit reached - approved with outstanding issues"
	// NoDraftIssue rejects a review pass that found no draft to review.
	NoDraftIssue = "No draft to review"
)

var yearPattern = regexp.MustCompile(`\b20\d\d\b`)

// ParseIntent maps a classification reply to an Intent by keyword, checked
// case-insensitively in order: REPLY, then SUMMARIZE or SUMMARY, then NEW.
// Anything else is NEW_EMAIL. Confidence is 0.9 when the full intent label
// appears in the reply and 0.7 otherwise.
func ParseIntent(reply string) (Intent, float64) {
	upper := strings.ToUpper(reply)

	intent := IntentNew
	switch {
	case strings.Contains(upper, "REPLY"):
		intent = IntentReply
	case strings.Contains(upper, "SUMMARIZE"), strings.Contains(upper, "SUMMARY"):
		intent = IntentSummarize
	case strings.Contains(upper, "NEW"):
		intent = IntentNew
	}

	if strings.Contains(upper, string(intent)) {
		return intent, confidenceExact
	}
	return intent, confidenceLoose
}

// ParseDecision reads a yes/no reply. It is true only when the reply
// contains YES or OUI and contains neither NO nor NON.
func ParseDecision(reply string) bool {
	upper := strings.ToUpper(strings.TrimSpace(reply))
	yes := strings.Contains(upper, "YES") || strings.Contains(upper, "OUI")
	no := strings.Contains(upper, "NO") || strings.Contains(upper, "NON")
	return yes && !no
}

// CleanQuery normalizes a generated search query: surrounding quotes are
// trimmed, years of the form 20xx removed, and whitespace collapsed.
func CleanQuery(reply string) string {
	q := strings.Trim(strings.TrimSpace(reply), `"'`)
	q = yearPattern.ReplaceAllString(q, "")
	return strings.Join(strings.Fields(q), " ")
}

// Draft is a parsed drafting reply.
type Draft struct {
	Subject string
	Body    string
	Raw     string
}

// ParseDraft splits a drafting reply on its first "Subject:" marker. The
// subject is the rest of that line; the body is everything after it. A
// reply without the marker is kept verbatim.
func ParseDraft(reply string) Draft {
	raw := strings.TrimSpace(reply)
	d := Draft{Body: raw, Raw: raw}

	_, after, found := strings.Cut(raw, "Subject:")
	if !found {
		return d
	}

	line, rest, _ := strings.Cut(after, "\n")
	subject := strings.TrimSpace(line)
	if subject == "" {
		return d
	}

	d.Subject = subject
	d.Body = strings.TrimSpace(rest)
	return d
}

// String returns "Subject: <subject>\n\n<body>" when a subject was found,
// otherwise the raw reply.
func (d Draft) String() string {
	if d.Subject == "" {
		return d.Raw
	}
	return "Subject: " + d.Subject + "\n\n" + d.Body
}

// Review is a parsed review reply.
type Review struct {
	Approved    bool
	Issues      []string
	Suggestions []string
}

// ParseReview reads a reply of the form
//
//	APPROVED: yes|no
//	ISSUES: <lines or none>
//	SUGGESTIONS: <lines or none>
//
// Approval is a case-insensitive match of "APPROVED: YES" or
// "APPROVED:TRUE". ISSUES is the text between "ISSUES:" and "SUGGESTIONS:",
// SUGGESTIONS the text after "SUGGESTIONS:". A section reading "none"
// yields no entries; otherwise each non-blank line is one entry.
//
// A rejected review without issues is approved with AntiDeadlockIssue so
// the draft/review loop cannot spin on an unparseable reply.
func ParseReview(reply string) Review {
	upper := strings.ToUpper(reply)
	r := Review{
		Approved:    strings.Contains(upper, "APPROVED: YES") || strings.Contains(upper, "APPROVED:TRUE"),
		Issues:      []string{},
		Suggestions: []string{},
	}

	if _, after, found := strings.Cut(reply, "ISSUES:"); found {
		section, _, _ := strings.Cut(after, "SUGGESTIONS:")
		r.Issues = sectionLines(section)
	}
	if _, after, found := strings.Cut(reply, "SUGGESTIONS:"); found {
		r.Suggestions = sectionLines(after)
	}

	if !r.Approved && len(r.Issues) == 0 {
		r.Approved = true
		r.Issues = []string{AntiDeadlockIssue}
	}
	return r
}

func sectionLines(section string) []string {
	section = strings.TrimSpace(section)
	if section == "" || strings.EqualFold(section, "none") {
		return []string{}
	}

	var lines []string
	for line := range strings.Lines(section) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
