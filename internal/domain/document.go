package domain

import "strings"

// CandidateUnknown is the placeholder name used when the chunker could not
// extract a candidate name from the document.
const CandidateUnknown = "Unknown"

// Document is one uploaded CV. The content hash is its primary identity:
// re-uploading identical bytes must never create a second document.
type Document struct {
	ContentHash   string
	CandidateName string
	RawText       string
}

// SectionLabel classifies a CV section into the closed label set.
type SectionLabel string

// The closed label set. Anything the chunker emits outside this set is
// remapped to LabelOther so no source text is ever dropped.
const (
	LabelSummary    SectionLabel = "Summary"
	LabelExperience SectionLabel = "Experience"
	LabelEducation  SectionLabel = "Education"
	LabelSkills     SectionLabel = "Skills"
	LabelOther      SectionLabel = "Other"
)

// labelAliases maps common variants of section titles onto the closed set.
var labelAliases = map[string]SectionLabel{
	"summary":          LabelSummary,
	"profile":          LabelSummary,
	"about":            LabelSummary,
	"objective":        LabelSummary,
	"experience":       LabelExperience,
	"work experience":  LabelExperience,
	"employment":       LabelExperience,
	"projects":         LabelExperience,
	"education":        LabelEducation,
	"academic":         LabelEducation,
	"skills":           LabelSkills,
	"technical skills": LabelSkills,
	"technologies":     LabelSkills,
	"languages":        LabelSkills,
	"other":            LabelOther,
}

// NormalizeLabel maps a raw label string onto the closed set.
// Unknown labels become LabelOther; the section text is kept either way.
func NormalizeLabel(raw string) SectionLabel {
	if l, ok := labelAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return l
	}
	return LabelOther
}

// Section is one logical CV block produced by the structural chunker.
// Sections partition the document text: concatenated in OrderIndex order they
// reconstruct the raw text modulo whitespace, with no overlap.
type Section struct {
	DocumentHash string
	Label        SectionLabel
	OrderIndex   int
	Text         string
	Vector       []float32
}
