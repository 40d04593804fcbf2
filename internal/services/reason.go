package services

import (
	"fmt"
	"strings"

	"github.com/LucsL0pes/mini-gymatch/internal/classifier"
)

const (
	reasonAutoApproved = "Document automatically approved based on the analysis of the submitted proof."
	reasonNoEvidence   = "The automatic analysis did not find sufficient evidence in the image to confirm gym enrollment."
	reasonNoKeywords   = "No relevant keywords were located."
)

// SynthesizeReason turns a classification verdict into the human-readable
// explanation that gets persisted. Returns nil, never an empty string.
func SynthesizeReason(verdict *classifier.Verdict) *string {
	var pieces []string

	if verdict.Reason != "" {
		pieces = append(pieces, verdict.Reason)
	}

	if len(verdict.MatchedKeywords) > 0 {
		pieces = append(pieces, fmt.Sprintf("Matched keywords: %s.", strings.Join(verdict.MatchedKeywords, ", ")))
	}

	if verdict.Confidence != nil {
		pieces = append(pieces, fmt.Sprintf("AI confidence: %.0f%%.", *verdict.Confidence*100))
	}

	if len(pieces) == 0 {
		if verdict.Approved {
			pieces = append(pieces, reasonAutoApproved)
		} else {
			pieces = append(pieces, reasonNoEvidence)
			if len(verdict.MatchedKeywords) == 0 {
				pieces = append(pieces, reasonNoKeywords)
			}
		}
	}

	reason := strings.TrimSpace(strings.Join(pieces, " "))
	if reason == "" {
		return nil
	}
	return &reason
}
