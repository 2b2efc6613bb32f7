package service

import (
	"strings"
	"testing"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrganizationCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "acme", want: "ACME"},
		{in: "  tech-01 ", want: "TECH-01"},
		{in: "abc", wantErr: true},
		{in: "has space", wantErr: true},
		{in: "emoji🙂", wantErr: true},
		{in: strings.Repeat("A", 33), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeOrganizationCode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateOrganizationCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateOrganizationCode()
		require.NoError(t, err)
		assert.Len(t, code, generatedCodeLength)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")

		normalized, err := NormalizeOrganizationCode(code)
		require.NoError(t, err)
		assert.Equal(t, code, normalized)

		assert.False(t, seen[code])
		seen[code] = true
	}
}
