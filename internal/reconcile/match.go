package reconcile

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/debtwise/debtwise/internal/ledger"
)

// Candidate is one possible resolution of an ambiguous account
// reference, surfaced for human review instead of being guessed at.
type Candidate struct {
	AccountID  string
	Name       string
	Confidence float64
}

// Matcher resolves external account references against registered
// accounts. Resolution is deterministic: exact id match first, then a
// bounded similarity function over normalized display names. Below the
// confidence threshold the matcher refuses to resolve.
type Matcher struct {
	// Threshold is the minimum confidence for an automatic match.
	Threshold float64

	// ReviewFloor is the minimum confidence for a candidate to appear
	// in a NeedsReview listing at all.
	ReviewFloor float64
}

// NewMatcher creates a matcher with the given automatic-match threshold
// and a review floor of 0.4.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold, ReviewFloor: 0.4}
}

// Resolve matches ref against accounts. On an automatic match it
// returns the account id and confidence. Otherwise id is empty and
// candidates lists near-misses ordered by confidence descending.
func (m *Matcher) Resolve(ref string, accounts []ledger.Account) (string, float64, []Candidate) {
	for _, acct := range accounts {
		if acct.ID == ref {
			return acct.ID, 1, nil
		}
	}

	normRef := normalizeName(ref)
	var candidates []Candidate
	for _, acct := range accounts {
		conf := similarity(normRef, normalizeName(acct.Name))
		if conf >= m.ReviewFloor {
			candidates = append(candidates, Candidate{
				AccountID:  acct.ID,
				Name:       acct.Name,
				Confidence: conf,
			})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].AccountID < candidates[j].AccountID
	})

	if len(candidates) > 0 && candidates[0].Confidence >= m.Threshold {
		// A runner-up this close makes the match ambiguous even above
		// the threshold; report for review rather than guess.
		if len(candidates) > 1 && candidates[0].Confidence-candidates[1].Confidence < 0.05 {
			return "", 0, candidates
		}
		return candidates[0].AccountID, candidates[0].Confidence, nil
	}
	return "", 0, candidates
}

// normalizeName prepares a display name for comparison: NFC
// normalization, lower case, punctuation dropped, whitespace collapsed.
func normalizeName(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// similarity is a Levenshtein ratio in [0,1]: 1 for identical strings,
// 0 for entirely different ones.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	dist := levenshtein(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

// levenshtein computes edit distance over runes with a two-row table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
