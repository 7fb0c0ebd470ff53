package domain

import "testing"

func TestNormalizeLabel_ClosedSet(t *testing.T) {
	tests := []struct {
		raw  string
		want SectionLabel
	}{
		{"Summary", LabelSummary},
		{"summary", LabelSummary},
		{"  Profile ", LabelSummary},
		{"Work Experience", LabelExperience},
		{"EXPERIENCE", LabelExperience},
		{"Projects", LabelExperience},
		{"Education", LabelEducation},
		{"Skills", LabelSkills},
		{"Technical Skills", LabelSkills},
		{"Other", LabelOther},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeLabel(tt.raw); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeLabel_UnknownMapsToOther(t *testing.T) {
	for _, raw := range []string{"Hobbies", "Volunteering", "Referees", "", "certifications"} {
		if got := NormalizeLabel(raw); got != LabelOther {
			t.Errorf("NormalizeLabel(%q) = %q, want %q", raw, got, LabelOther)
		}
	}
}

func TestRetrievalResult_IsEmpty(t *testing.T) {
	if !(RetrievalResult{}).IsEmpty() {
		t.Error("zero result should be empty")
	}
	r := RetrievalResult{Sections: []RetrievedSection{{DocumentHash: "h"}}}
	if r.IsEmpty() {
		t.Error("non-zero result should not be empty")
	}
}
