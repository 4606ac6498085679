package prompts

import (
	"fmt"
	"strings"
)

// DocumentContext is the source document metadata included in generation prompts.
type DocumentContext struct {
	Title           string
	PublicationDate string
	DocumentType    string
	Citation        string
	Abstract        string
}

// MemoSection is one fixed section the briefing memo must contain.
type MemoSection struct {
	Heading  string
	Guidance []string
}

// MemoSections are the "##" sections of every briefing memo, in output order.
var MemoSections = []MemoSection{
	{
		Heading:  "Executive Summary",
		Guidance: []string{"Two or three sentences: what changed, who is affected, and what has to happen next."},
	},
	{
		Heading: "Key Changes and Announcements",
		Guidance: []string{
			"What is new or different",
			"What is proposed, finalized, or announced",
			"Key dates and deadlines",
		},
	},
	{
		Heading: "Who Is Affected",
		Guidance: []string{
			"Providers, payers, manufacturers and other stakeholder groups",
			"Specific organization types or programs",
			"Geographic or operational scope",
		},
	},
	{
		Heading: "Timeline and Effective Dates",
		Guidance: []string{
			"Comment periods",
			"Implementation and compliance deadlines",
			"Phase-in schedules",
		},
	},
	{
		Heading: "Business Implications",
		Guidance: []string{
			"Operational impact",
			"Financial considerations",
			"Competitive and risk factors",
			"Opportunities",
		},
	},
	{
		Heading: "Recommended Actions",
		Guidance: []string{
			"Immediate steps",
			"Medium-term planning",
			"Stakeholders to engage and resources needed",
		},
	},
	{
		Heading: "Questions to Consider",
		Guidance: []string{
			"Strategic decisions leadership must make",
			"Areas that need deeper analysis",
			"Scenarios worth planning for",
		},
	},
}

// MemoTemperature keeps memo generation close to the source facts.
const MemoTemperature float32 = 0.3

// BuildMemoSystemPrompt returns the system prompt for a tenant's base briefing memo.
func BuildMemoSystemPrompt(companyName string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("You are a regulatory affairs expert writing executive briefing memos for %s.\n\n", companyName))
	prompt.WriteString("Memos must be:\n")
	prompt.WriteString("- Actionable for senior executives\n")
	prompt.WriteString("- Focused on business impact and strategy\n")
	prompt.WriteString("- Professional but plain-spoken\n")
	prompt.WriteString("- Organized into clearly headed sections\n")
	prompt.WriteString("- Two to three printed pages\n\n")
	prompt.WriteString("Output format: Markdown. It is converted to a branded PDF.")

	return prompt.String()
}

// BuildMemoPrompt returns the user prompt for a base briefing memo over documentText.
func BuildMemoPrompt(doc DocumentContext, documentText string) string {
	var prompt strings.Builder

	prompt.WriteString("Analyze the regulatory document below and write an executive briefing memo.\n\n")

	prompt.WriteString("DOCUMENT METADATA:\n")
	prompt.WriteString(fmt.Sprintf("Title: %s\n", doc.Title))
	if doc.PublicationDate != "" {
		prompt.WriteString(fmt.Sprintf("Publication Date: %s\n", doc.PublicationDate))
	}
	if doc.DocumentType != "" {
		prompt.WriteString(fmt.Sprintf("Document Type: %s\n", doc.DocumentType))
	}
	if doc.Citation != "" {
		prompt.WriteString(fmt.Sprintf("Citation: %s\n", doc.Citation))
	}
	if doc.Abstract != "" {
		prompt.WriteString(fmt.Sprintf("\nAbstract:\n%s\n", doc.Abstract))
	}

	prompt.WriteString("\nFULL DOCUMENT TEXT:\n")
	prompt.WriteString(documentText)
	prompt.WriteString("\n\n---\n\n")

	prompt.WriteString("Write the memo with exactly these sections, in this order:\n\n")
	for _, section := range MemoSections {
		prompt.WriteString(fmt.Sprintf("## %s\n", section.Heading))
		for _, g := range section.Guidance {
			prompt.WriteString(fmt.Sprintf("- %s\n", g))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("---\n\n")
	prompt.WriteString("Formatting:\n")
	prompt.WriteString("- Start each section with a \"## \" heading\n")
	prompt.WriteString("- Prefer bullet points over long paragraphs\n")
	prompt.WriteString("- Bold key terms and dates\n")
	prompt.WriteString("- Explain the consequence of each change, not only the change itself\n")

	return prompt.String()
}
