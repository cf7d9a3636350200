// Package identity provides identity-key normalization utilities.
// All matching and storage of customer identity keys goes through these
// functions so that formatting differences never defeat the unique indices.
package identity

import (
	"hash/fnv"
	"strings"

	"scv_dedup_backend/platform/phone"
)

// NormalizePAN uppercases and trims a PAN. Empty input stays empty.
func NormalizePAN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeAadhaar strips everything but digits from an Aadhaar number.
func NormalizeAadhaar(s string) string {
	return digits(s)
}

// NormalizeMobile reduces a mobile number to bare digits for comparison.
// E.164 parsing first, so "+91 99999 99999" and "9999999999" collapse to
// the same comparison key.
func NormalizeMobile(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	return phone.Digits(phone.NormalizeE164(trimmed))
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Fingerprint hashes the normalized identity keys to a stable partition key.
// Used to route ingestion events for the same identity to the same worker
// queue. Key order is fixed so the same record always hashes the same.
func Fingerprint(pan, aadhaar, mobile, email string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(NormalizePAN(pan)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(NormalizeAadhaar(aadhaar)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(NormalizeMobile(mobile)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(NormalizeEmail(email)))
	return h.Sum32()
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
