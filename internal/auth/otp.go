package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// GenerateCode returns a uniformly random six digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
