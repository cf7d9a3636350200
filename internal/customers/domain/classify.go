package domain

import (
	"scv_dedup_backend/platform/apperr"
)

// MatchKey identifies which identity key a candidate matched on.
type MatchKey string

const (
	MatchKeyPAN     MatchKey = "pan"
	MatchKeyAadhaar MatchKey = "aadhaar"
	MatchKeyMobile  MatchKey = "mobile"
	MatchKeyEmail   MatchKey = "email"
)

// matchKeyPriority orders keys strongest first for ambiguity tie-breaks.
var matchKeyPriority = []MatchKey{MatchKeyPAN, MatchKeyAadhaar, MatchKeyMobile, MatchKeyEmail}

// Candidate is one profile returned by identity resolution, annotated with
// the key(s) it matched on.
type Candidate struct {
	Profile   CustomerProfile
	MatchedOn []MatchKey
}

// matchedOn reports whether the candidate matched on the given key.
func (c Candidate) matchedOn(key MatchKey) bool {
	for _, k := range c.MatchedOn {
		if k == key {
			return true
		}
	}
	return false
}

// MatchResult is the transient output of one resolution cycle.
type MatchResult struct {
	Candidates []Candidate
}

// Classification is the deterministic outcome of match classification.
type Classification string

const (
	// ClassificationNew means no existing profile matched; a fresh profile
	// must be created.
	ClassificationNew Classification = "NEW"
	// ClassificationConfirmedMatch means exactly one profile matched,
	// regardless of which key. A single weak-key match (email or mobile
	// only) is still auto-confirmed; the matched key is recorded so the
	// audit trail can distinguish it.
	ClassificationConfirmedMatch Classification = "CONFIRMED_MATCH"
	// ClassificationAmbiguous means multiple distinct profiles matched and
	// the tie-break selected one of them.
	ClassificationAmbiguous Classification = "AMBIGUOUS"
)

// ClassifiedMatch is the classifier output: the classification, the chosen
// candidate (nil for NEW), and the key that decided the choice.
type ClassifiedMatch struct {
	Classification Classification
	Candidate      *Candidate
	DecidedBy      MatchKey
}

// MatchedOnString renders the chosen candidate's matched keys for audit rows.
func (m ClassifiedMatch) MatchedOnString() string {
	if m.Candidate == nil {
		return ""
	}
	s := ""
	for i, k := range m.Candidate.MatchedOn {
		if i > 0 {
			s += ","
		}
		s += string(k)
	}
	return s
}

// Classify turns a resolution result into a deterministic classification.
//
// Zero candidates is NEW. Exactly one candidate is CONFIRMED_MATCH. With
// multiple candidates the strongest-key priority (pan, aadhaar, mobile,
// email) picks one; two candidates tying on the same priority key means a
// uniqueness invariant was violated somewhere upstream, so the classifier
// refuses to guess and returns a data consistency error.
func Classify(result MatchResult) (ClassifiedMatch, error) {
	switch len(result.Candidates) {
	case 0:
		return ClassifiedMatch{Classification: ClassificationNew}, nil
	case 1:
		c := result.Candidates[0]
		decidedBy := MatchKey("")
		if len(c.MatchedOn) > 0 {
			decidedBy = c.MatchedOn[0]
		}
		return ClassifiedMatch{
			Classification: ClassificationConfirmedMatch,
			Candidate:      &c,
			DecidedBy:      decidedBy,
		}, nil
	}

	for _, key := range matchKeyPriority {
		var hits []Candidate
		for _, c := range result.Candidates {
			if c.matchedOn(key) {
				hits = append(hits, c)
			}
		}
		if len(hits) == 1 {
			c := hits[0]
			return ClassifiedMatch{
				Classification: ClassificationAmbiguous,
				Candidate:      &c,
				DecidedBy:      key,
			}, nil
		}
		if len(hits) > 1 {
			// Two profiles sharing the same priority key should be impossible
			// given the uniqueness indices; do not guess.
			return ClassifiedMatch{}, apperr.DataConsistency(
				"multiple profiles matched on the same priority key: " + string(key),
			).WithOp("domain.Classify")
		}
	}

	// Candidates with no recorded match keys: resolver misuse.
	return ClassifiedMatch{}, apperr.DataConsistency(
		"ambiguous match with no recorded match keys",
	).WithOp("domain.Classify")
}
