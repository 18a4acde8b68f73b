package workflow

import (
	"fmt"
	"strings"
	"time"
)

func classifyPrompt(instruction string) string {
	return fmt.Sprintf(`Classify the following request into exactly one category:
- %s: the user wants to reply to an existing email or thread
- %s: the user wants to write a new email from scratch
- %s: the user wants a summary of an email conversation or thread

Request: %s

Answer with the category name only (%s, %s or %s).`,
		IntentReply, IntentNew, IntentSummarize,
		instruction,
		IntentReply, IntentNew, IntentSummarize,
	)
}

func webSearchDecisionPrompt(instruction string, contextLength int) string {
	return fmt.Sprintf(`You decide whether drafting an email requires a web search.

Request: %q
Internal context available: %d characters

Answer YES only if the email must mention:
- recent news or current events
- frequently changing facts about specific companies or products
- market data, prices or live statistics
- external entities absent from internal documents

Answer NO for thank-you notes, confirmations, scheduling, follow-ups,
internal communication and any routine correspondence that templates and
general knowledge can cover.

Examples:
- "Write an email to thank a client" -> NO
- "Write an email about the latest news from Microsoft" -> YES
- "Confirm the meeting on Monday" -> NO
- "Email about current market trends" -> YES

Answer with YES or NO only.`, instruction, contextLength)
}

func searchQueryPrompt(instruction string, now time.Time) string {
	return fmt.Sprintf(`Today's date is %s.

Write a web search query that finds recent, specific information for this
email request.

Request: %s

Include the key entities and keywords. Words such as "latest" or "recent"
are fine. Do not include a year.

Answer with the query text only, without quotes or explanation.`,
		now.Format("January 2006"), instruction)
}

func draftPrompt(intent Intent, instruction, context string, external bool, notes string) string {
	var sb strings.Builder

	switch intent {
	case IntentReply:
		fmt.Fprintf(&sb, `Write a professional reply using the context below.

Instruction: %s

Context from previous emails and documents:
%s

The reply must be concise and include a greeting, a response to the key
points and a professional closing.`, instruction, context)
	case IntentSummarize:
		fmt.Fprintf(&sb, `Summarize the email conversation below in a clear structure.

Context:
%s

Cover the main topics, decisions and actions, dates or deadlines, and next
steps when mentioned.`, context)
	default:
		if external {
			fmt.Fprintf(&sb, `Write a professional email for the instruction below.

Instruction: %s

The context includes external information from a web search, introduced by
the line %q. Use it to give specific, current and accurate details instead
of generic statements.

Context (internal documents and external information):
%s`, instruction, ExternalMarker, context)
		} else {
			fmt.Fprintf(&sb, `Write a professional email for the instruction below.

Instruction: %s

Context from internal documents and templates:
%s`, instruction, context)
		}
		sb.WriteString(`

Format the email exactly as:

Subject: <subject line>

<email body>

Use real names where known. If a placeholder is unavoidable, keep it simple
such as "Client" or "Team". Include a greeting and a closing.`)
	}

	if notes != "" {
		sb.WriteString("\n\nA reviewer rejected the previous draft. Address these notes:\n")
		sb.WriteString(notes)
	}
	return sb.String()
}

func reviewPrompt(instruction string, intent Intent, draft string) string {
	return fmt.Sprintf(`Review this email draft for quality, professionalism and compliance.

Original request: %s
Intent: %s

Draft:
%s

Check tone, coherence with the request, grammar and spelling, length and
structure, and that no sensitive information is disclosed.

Respond with:
APPROVED: [yes/no]
ISSUES: [issues found, one per line, or 'none']
SUGGESTIONS: [improvements, one per line, or 'none']
`, instruction, intent, draft)
}

func revisionNotes(issues, suggestions []string) string {
	var sb strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&sb, "- Issue: %s\n", issue)
	}
	for _, s := range suggestions {
		fmt.Fprintf(&sb, "- Suggestion: %s\n", s)
	}
	return strings.TrimRight(sb.String(), "\n")
}
