package domain

// RetrievedSection is a single similarity-search hit: the stored section
// metadata plus the cosine similarity score.
type RetrievedSection struct {
	DocumentHash  string
	CandidateName string
	Label         SectionLabel
	OrderIndex    int
	Text          string
	Score         float64
}

// RetrievalResult is the ordered, bounded outcome of one planned query.
// Produced fresh per query, never cached. MatchedCandidates records the
// candidate-name filter that was applied, if any.
type RetrievalResult struct {
	Sections          []RetrievedSection
	MatchedCandidates []string
}

// IsEmpty reports whether nothing was retrieved.
func (r RetrievalResult) IsEmpty() bool { return len(r.Sections) == 0 }
