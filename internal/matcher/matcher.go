// Package matcher implements pure keyword matching against scraped job
// postings, plus the content fingerprint used as the durable dedup key.
package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/jobpulse/notifier/internal/model"
)

// minSubstringLen guards the containment fallback: very short keywords
// ("go", "ai") would otherwise match inside unrelated words.
const minSubstringLen = 3

// Normalize lowercases s and replaces every non-alphanumeric rune with
// a single space, so token boundaries are exactly the runs of letters
// and digits.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// Fingerprint derives the stable dedup key for a posting. Two postings
// with the same normalized company and title always fingerprint
// identically, no matter what row id the scraper assigned them.
func Fingerprint(company, title string) string {
	sum := sha256.Sum256([]byte(Normalize(company) + "|" + Normalize(title)))
	return hex.EncodeToString(sum[:16])
}

// searchText flattens the posting fields the matcher looks at.
func searchText(p *model.JobPosting) string {
	parts := []string{p.Title, p.Company, p.Description, p.Location, p.Category}
	parts = append(parts, p.Skills...)
	return strings.Join(parts, " ")
}

// Match returns every keyword that hits the posting (OR semantics).
// A keyword matches on token boundaries first; keywords of length >= 3
// fall back to raw substring containment so compound tokens like
// "iOS12" still hit. Case-insensitive, no side effects.
func Match(p *model.JobPosting, keywords []string) []string {
	if p == nil || len(keywords) == 0 {
		return nil
	}

	raw := strings.ToLower(searchText(p))
	normalized := " " + Normalize(raw) + " "

	var matched []string
	for _, kw := range keywords {
		nkw := Normalize(kw)
		if nkw == "" {
			continue
		}

		if strings.Contains(normalized, " "+nkw+" ") {
			matched = append(matched, kw)
			continue
		}

		if len(nkw) >= minSubstringLen && strings.Contains(raw, strings.ToLower(strings.TrimSpace(kw))) {
			matched = append(matched, kw)
		}
	}

	return matched
}
