package netutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomainName(t *testing.T) {
	for _, tc := range []struct {
		value    string
		expected string
	}{
		{"example.com", "example.com"},
		{"EXAMPLE.COM", "example.com"},
		{"  example.com  ", "example.com"},
		{"sub.example.com.", "sub.example.com"},
		{"Mailinator.com", "mailinator.com"},
	} {
		actual, err := NormalizeDomainName(tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}
}

func TestNormalizeDomainName_Invalid(t *testing.T) {
	for _, invalid := range []string{
		"",
		"   ",
		"exa mple.com",
		strings.Repeat("a", maxDomainNameSize+1),
	} {
		_, err := NormalizeDomainName(invalid)
		assert.Error(t, err)
	}
}

func TestValidateDomainName(t *testing.T) {
	require.NoError(t, ValidateDomainName("example.com"))
	assert.Error(t, ValidateDomainName(""))
}
