package ticketcode

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^PQR[0-9A-F]{6}$`)

func TestGenerateMatchesPattern(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190, "codes should rarely collide")
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AB-12-cd", "AB12CD"},
		{"  pqr-a1b2c3 ", "PQRA1B2C3"},
		{"PQRA1B2C3", "PQRA1B2C3"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "input %q", c.in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []string{"AB-12-cd", " pqr-00ff-aa ", "x", "PQR123ABC"} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestCandidates(t *testing.T) {
	assert.Nil(t, Candidates("   "))
	assert.Equal(t, []string{"PQRABC123"}, Candidates(" pqrabc123 "))
	assert.Equal(t, []string{"PQRABC123", "PQR-ABC123"}, Candidates("pqr-abc123"))
}
