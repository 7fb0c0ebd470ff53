package sections

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/cvlens/cvlens/internal/db"
	"github.com/cvlens/cvlens/internal/domain"
)

// buildPointFields maps a section onto the stored hash fields. The lowercased
// candidate name copy exists for case-insensitive filter matching.
func buildPointFields(doc domain.Document, sec domain.Section) map[string]string {
	return map[string]string{
		fieldContent:            sec.Text,
		fieldVector:             vectorToBytes(sec.Vector),
		FieldContentHash:        doc.ContentHash,
		FieldCandidateName:      doc.CandidateName,
		FieldCandidateNameLower: strings.ToLower(strings.TrimSpace(doc.CandidateName)),
		FieldSectionLabel:       string(sec.Label),
		FieldOrderIndex:         strconv.Itoa(sec.OrderIndex),
	}
}

// entryToSection maps a search hit back onto the domain type.
func entryToSection(entry db.SearchEntry) domain.RetrievedSection {
	orderIndex, _ := strconv.Atoi(entry.Fields[FieldOrderIndex])

	name := entry.Fields[FieldCandidateName]
	if name == "" {
		name = domain.CandidateUnknown
	}

	return domain.RetrievedSection{
		DocumentHash:  entry.Fields[FieldContentHash],
		CandidateName: name,
		Label:         domain.SectionLabel(entry.Fields[FieldSectionLabel]),
		OrderIndex:    orderIndex,
		Text:          entry.Fields[fieldContent],
		Score:         entry.Score,
	}
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
