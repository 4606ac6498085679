package prompts

import (
	"fmt"
	"strings"
)

// ClientContext describes the client a base artifact is tailored for.
type ClientContext struct {
	Name       string
	Industry   string
	Context    string
	FocusAreas []string
}

// customizationRules are shared by memo and deck customization.
var customizationRules = []string{
	"Keep every fact, figure and date from the base version unchanged",
	"Do not remove material information",
	"Do not assume anything about the client beyond the context given",
	"Keep the same structure, headings and tone",
}

// BuildMemoCustomizationSystemPrompt returns the system prompt for tailoring a memo.
func BuildMemoCustomizationSystemPrompt() string {
	var prompt strings.Builder

	prompt.WriteString("You are tailoring a regulatory briefing memo for one specific client.\n\n")
	prompt.WriteString("Re-frame the analysis around the client's situation: highlight what matters most to their business and make the recommendations specific to them.\n\n")
	prompt.WriteString("Rules:\n")
	for _, r := range customizationRules {
		prompt.WriteString(fmt.Sprintf("- %s\n", r))
	}
	prompt.WriteString("\nOutput format: Markdown with the same \"## \" sections as the input.")

	return prompt.String()
}

// BuildMemoCustomizationPrompt returns the user prompt for tailoring baseMemo to client.
func BuildMemoCustomizationPrompt(baseMemo string, client ClientContext) string {
	var prompt strings.Builder

	prompt.WriteString("Here is a regulatory briefing memo:\n\n---\n")
	prompt.WriteString(baseMemo)
	prompt.WriteString("\n---\n\n")
	writeClientBlock(&prompt, client)

	prompt.WriteString(fmt.Sprintf("Rewrite the memo for %s:\n\n", client.Name))
	prompt.WriteString("1. **Executive Summary**: lead with what the document means for this client.\n")
	prompt.WriteString(fmt.Sprintf("2. **Who Is Affected**: state directly how %s is affected.\n", client.Name))
	prompt.WriteString("3. **Business Implications**: tie each implication to the client's business model and priorities.\n")
	prompt.WriteString("4. **Recommended Actions**: make each action specific to the client, citing focus areas where relevant.\n")
	prompt.WriteString("5. **Questions to Consider**: ask the questions this client's leadership actually faces.\n\n")
	prompt.WriteString("Use the client's name where it reads naturally. Keep all headings and factual content from the original.")

	return prompt.String()
}

// BuildDeckCustomizationSystemPrompt returns the system prompt for tailoring a slide deck.
func BuildDeckCustomizationSystemPrompt() string {
	var prompt strings.Builder

	prompt.WriteString("You are tailoring a regulatory presentation for one specific client.\n\n")
	prompt.WriteString("The input is a slide deck in JSON. Return the tailored deck as one JSON object with exactly the same structure:\n\n")
	prompt.WriteString(slideSchema)
	prompt.WriteString("\n\nNo markdown fences and no commentary.\n\n")
	prompt.WriteString("Rules:\n")
	for _, r := range customizationRules {
		prompt.WriteString(fmt.Sprintf("- %s\n", r))
	}
	prompt.WriteString("- Keep the slide order and slide types; reword titles and bullets only\n")
	prompt.WriteString("- Add a speaker note to the title slide naming the client\n")

	return prompt.String()
}

// BuildDeckCustomizationPrompt returns the user prompt for tailoring deckJSON to client.
func BuildDeckCustomizationPrompt(deckJSON string, client ClientContext) string {
	var prompt strings.Builder

	prompt.WriteString("Here is the base slide deck:\n\n")
	prompt.WriteString(deckJSON)
	prompt.WriteString("\n\n---\n\n")
	writeClientBlock(&prompt, client)
	prompt.WriteString(fmt.Sprintf("Tailor the executive summary, impact, action and discussion slides to %s.", client.Name))

	return prompt.String()
}

func writeClientBlock(prompt *strings.Builder, client ClientContext) {
	prompt.WriteString(fmt.Sprintf("CLIENT: %s\n", client.Name))
	if client.Industry != "" {
		prompt.WriteString(fmt.Sprintf("INDUSTRY: %s\n", client.Industry))
	}
	if len(client.FocusAreas) > 0 {
		prompt.WriteString(fmt.Sprintf("Focus Areas: %s\n", strings.Join(client.FocusAreas, ", ")))
	}
	prompt.WriteString("\nCLIENT CONTEXT:\n")
	if client.Context != "" {
		prompt.WriteString(client.Context)
	} else {
		prompt.WriteString("(none provided)")
	}
	prompt.WriteString("\n\n---\n\n")
}
