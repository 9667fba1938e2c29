package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/notifier/internal/matcher"
	"github.com/jobpulse/notifier/internal/model"
)

func posting(title, company, description string) *model.JobPosting {
	return &model.JobPosting{
		Title:       title,
		Company:     company,
		Description: description,
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Senior iOS Engineer", "senior ios engineer"},
		{"Mobile/iOS development", "mobile ios development"},
		{"  C++  Developer!! ", "c developer"},
		{"Node.js", "node js"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matcher.Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestMatch_WordBoundary(t *testing.T) {
	p := posting("Senior iOS Engineer", "Acme", "")
	got := matcher.Match(p, []string{"iOS"})
	assert.Equal(t, []string{"iOS"}, got)
}

func TestMatch_SubstringFallback(t *testing.T) {
	// "iOS12" is one token, so the boundary rule misses; the length>=3
	// containment fallback catches it.
	p := posting("iOS12 Developer", "Acme", "")
	got := matcher.Match(p, []string{"iOS"})
	assert.Equal(t, []string{"iOS"}, got)
}

func TestMatch_CompoundToken(t *testing.T) {
	p := posting("Engineer", "Acme", "strong Mobile/iOS development background")
	got := matcher.Match(p, []string{"iOS"})
	assert.Equal(t, []string{"iOS"}, got)
}

func TestMatch_ShortKeywordNoFallback(t *testing.T) {
	// "Go" is below the substring threshold and "Golang" is one token,
	// so there must be no match.
	p := posting("Golang Developer", "Acme", "")
	assert.Empty(t, matcher.Match(p, []string{"Go"}))

	// Exact token still matches.
	p = posting("Go Developer", "Acme", "")
	assert.Equal(t, []string{"Go"}, matcher.Match(p, []string{"Go"}))
}

func TestMatch_CaseInsensitive(t *testing.T) {
	p := posting("SENIOR PYTHON DEVELOPER", "Acme", "")
	assert.Equal(t, []string{"python"}, matcher.Match(p, []string{"python"}))
}

func TestMatch_ORSemantics(t *testing.T) {
	p := posting("Senior Python Developer", "Acme", "building FastAPI services")
	got := matcher.Match(p, []string{"python", "fastapi", "rust"})
	assert.Equal(t, []string{"python", "fastapi"}, got)
}

func TestMatch_NoHit(t *testing.T) {
	p := posting("Graphic Designer", "Beta", "Figma and Illustrator")
	assert.Empty(t, matcher.Match(p, []string{"python", "fastapi"}))
}

func TestMatch_EmptyKeywords(t *testing.T) {
	p := posting("Senior Python Developer", "Acme", "")
	assert.Empty(t, matcher.Match(p, nil))
	assert.Empty(t, matcher.Match(p, []string{}))
	assert.Empty(t, matcher.Match(p, []string{"", "   ", "!!"}))
}

func TestMatch_SkillsAndLocation(t *testing.T) {
	p := &model.JobPosting{
		Title:    "Backend Engineer",
		Company:  "Acme",
		Location: "Berlin",
		Skills:   []string{"Kubernetes", "PostgreSQL"},
	}
	assert.Equal(t, []string{"kubernetes"}, matcher.Match(p, []string{"kubernetes"}))
	assert.Equal(t, []string{"berlin"}, matcher.Match(p, []string{"berlin"}))
}

func TestMatch_MultiWordKeyword(t *testing.T) {
	p := posting("Machine Learning Engineer", "Acme", "")
	assert.Equal(t, []string{"machine learning"}, matcher.Match(p, []string{"machine learning"}))
	assert.Empty(t, matcher.Match(p, []string{"learning machine"}))
}

func TestFingerprint_StableAcrossRowChurn(t *testing.T) {
	a := matcher.Fingerprint("Acme", "Senior Python Developer")
	b := matcher.Fingerprint("ACME", "Senior  Python Developer!")
	require.Equal(t, a, b, "normalization must make fingerprints row-id independent")
}

func TestFingerprint_DistinctJobs(t *testing.T) {
	a := matcher.Fingerprint("Acme", "Senior Python Developer")
	b := matcher.Fingerprint("Acme", "Junior Python Developer")
	c := matcher.Fingerprint("Beta", "Senior Python Developer")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}
