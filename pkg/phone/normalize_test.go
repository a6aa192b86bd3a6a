package phone

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-service/internal/domain"
)

func newIndia(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer("91")
	require.NoError(t, err)
	return n
}

func TestNormalize(t *testing.T) {
	n := newIndia(t)

	cases := []struct {
		raw  string
		want string
	}{
		{"9876543210", "919876543210"},
		{"+91 98765-43210", "919876543210"},
		{"(987) 654-3210", "919876543210"},
		{"+1 415 555 0100", "14155550100"},
		{"0987654321", "910987654321"},
		{"0123456789", "910123456789"},
		{"09876543210", "09876543210"},
		{"0091 98765 43210", "00919876543210"},
	}
	for _, tc := range cases {
		got, err := n.Normalize(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestNormalizeRejects(t *testing.T) {
	n := newIndia(t)

	for _, raw := range []string{"", "12345", "987654321", "+91-000", "abc", "1234567890123456"} {
		_, err := n.Normalize(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidPhone, raw)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newIndia(t)

	for _, raw := range []string{"9876543210", "+44 20 7946 0958", "1-800-555-0199", "919876543210", "  98 76 54 32 10 "} {
		once, err := n.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "", strings.Trim(once, "0123456789"), "output must be digits only")

		twice, err := n.Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNewNormalizerValidatesCountryCode(t *testing.T) {
	for _, cc := range []string{"", "0", "01", "1234", "9a"} {
		_, err := NewNormalizer(cc)
		assert.Error(t, err, cc)
	}
	_, err := NewNormalizer("1")
	assert.NoError(t, err)
}

func TestWebLink(t *testing.T) {
	n := newIndia(t)

	link, err := n.WebLink("98765 43210", "hi there & welcome")
	require.NoError(t, err)
	assert.Equal(t, "https://web.whatsapp.com/send?phone=919876543210&text=hi+there+%26+welcome", link)

	_, err = n.WebLink("123", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}
