package chunker

import (
	"fmt"
	"strings"
)

const systemInstruction = "You are an expert CV parser. " +
	"You copy text verbatim and respond only with valid JSON."

const promptTemplate = `Read the CV below and do two things:
1. Extract the candidate's full name.
2. Split the CV into its logical sections.

Classify every section into exactly one of these labels:
Summary, Experience, Education, Skills, Other.

Important rules:
- Do NOT skip any part of the CV, even if it has an unusual heading.
- Do NOT invent, summarize, or reword content. Copy the text exactly as it appears.
- Preserve the original order of the sections.
- Every character of the CV must belong to exactly one section.

Respond ONLY with valid JSON, no markdown, no code fences, no extra text:
{
  "candidate_name": "Full Name Here",
  "sections": [
    {"label": "Summary", "text": "...full text of this section..."},
    {"label": "Experience", "text": "...full text of this section..."}
  ]
}
%s
CV Text:
%s`

// buildPrompt renders the chunking prompt. The name hint, when present,
// biases extraction without overriding what the CV actually says.
func buildPrompt(rawText, nameHint string) string {
	hint := ""
	if strings.TrimSpace(nameHint) != "" {
		hint = fmt.Sprintf("\nThe candidate is likely named %q; confirm against the CV.\n", nameHint)
	}
	return fmt.Sprintf(promptTemplate, hint, rawText)
}
