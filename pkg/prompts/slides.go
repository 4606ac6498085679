package prompts

import (
	"fmt"
	"strings"
)

// DefaultDescriptionDoc is used when a tenant has not supplied its own
// slide-deck transformation rules.
const DefaultDescriptionDoc = `# Regulatory Deck Rules

## Audience
Healthcare provider executives. Lead with what they must do, by when, and what it costs.

## Deck Outline

### Title Slide
- Official rule name as the title
- Federal Register citation and publication date as the subtitle

### Executive Summary (1-2 slides)
- Three to five takeaways phrased as consequences for the reader's organization

### Timeline and Deadlines
- Every date in the document
- Compliance deadlines called out explicitly

### Financial Impact
- Dollar amounts, percentages and payment changes
- Compare against current rates where the document does

### Required Actions
- Concrete compliance steps ordered by deadline
- Grouped by department (Clinical, Finance, IT, Operations)

### Discussion Questions
- Three to five strategic questions for the client conversation

## Formatting
- No more than six bullets per slide
- Replace agency jargon with plain business language
- Quote regulatory text only where the exact wording matters`

// slideSchema is the JSON shape the slide renderer consumes.
const slideSchema = `{
  "slides": [
    {
      "slide_type": "title" | "content" | "section" | "two_column" | "summary",
      "title": "Slide title",
      "subtitle": "Optional subtitle (title slides)",
      "content": [
        {"type": "bullet", "text": "Point", "level": 0},
        {"type": "bullet", "text": "Sub-point", "level": 1},
        {"type": "paragraph", "text": "Paragraph text"},
        {"type": "note", "text": "Speaker note, never shown on the slide"}
      ],
      "left_column": [],
      "right_column": []
    }
  ],
  "metadata": {
    "document_title": "Official document title",
    "citation": "Federal Register citation, e.g. 89 FR 4521",
    "publication_date": "Publication date",
    "comment_deadline": "Comment deadline, if any",
    "key_topics": ["topic"]
  }
}`

// SlideMaxBullets is the bullet limit per content slide stated to the model.
const SlideMaxBullets = 6

// BuildSlideSystemPrompt returns the system prompt for slide-deck generation.
func BuildSlideSystemPrompt() string {
	var prompt strings.Builder

	prompt.WriteString("You are a regulatory document analyst who builds executive presentations from Federal Register rules and notices.\n\n")
	prompt.WriteString("You receive the extracted text of one document and a set of transformation rules.\n\n")
	prompt.WriteString("Respond with one JSON object and nothing else: no markdown fences, no commentary. It must match this structure exactly:\n\n")
	prompt.WriteString(slideSchema)
	prompt.WriteString("\n\nleft_column and right_column are only used on two_column slides.\n\n")

	prompt.WriteString("## Slide Types\n\n")
	prompt.WriteString("- **title**: the first slide. Document name as title, citation and date as subtitle, plus a speaker note with a short overview.\n")
	prompt.WriteString("- **section**: a divider between topic areas. Title only.\n")
	prompt.WriteString(fmt.Sprintf("- **content**: bullets, at most %d. Level 0 for main points, level 1 for sub-points.\n", SlideMaxBullets))
	prompt.WriteString("- **two_column**: before/after or current/proposed comparisons using left_column and right_column.\n")
	prompt.WriteString("- **summary**: the closing slide(s) with takeaways and next steps.\n\n")

	prompt.WriteString("## Quality\n\n")
	prompt.WriteString("- 15 to 40 slides depending on document length\n")
	prompt.WriteString("- No filler bullets\n")
	prompt.WriteString("- Plain business language; quote regulatory text only when precision matters\n")
	prompt.WriteString("- Include every date, deadline and financial figure in the document\n")
	prompt.WriteString("- Separate major topics with section slides\n")

	return prompt.String()
}

// BuildSlidePrompt returns the user prompt pairing the transformation rules
// with the document text. An empty descriptionDoc uses DefaultDescriptionDoc.
func BuildSlidePrompt(descriptionDoc, documentText string) string {
	if strings.TrimSpace(descriptionDoc) == "" {
		descriptionDoc = DefaultDescriptionDoc
	}

	var prompt strings.Builder
	prompt.WriteString("## Transformation Instructions\n\n")
	prompt.WriteString(descriptionDoc)
	prompt.WriteString("\n\n---\n\n")
	prompt.WriteString("## Document Text\n\n")
	prompt.WriteString(documentText)

	return prompt.String()
}
