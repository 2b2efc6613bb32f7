// internal/service/orgcode.go
package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/dangerclosesec/assessly/internal/domain"
	"github.com/dangerclosesec/assessly/internal/repository"
)

const (
	generatedCodeLength = 10
	// No 0/O or 1/I/L.
	codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9-]{4,32}$`)

// NormalizeOrganizationCode canonicalizes an admin-supplied code and checks
// its shape.
func NormalizeOrganizationCode(code string) (string, error) {
	normalized := repository.NormalizeCode(code)
	if !codePattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: organization code must be 4-32 characters of A-Z, 0-9 or '-'", domain.ErrInvalidInput)
	}
	return normalized, nil
}

// GenerateOrganizationCode returns a random code that is impractical to
// enumerate.
func GenerateOrganizationCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, generatedCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating organization code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
