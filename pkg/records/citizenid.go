package records

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// CitizenIDPrefix starts every generated citizen identifier
const CitizenIDPrefix = "MIA-"

var citizenIDPattern = regexp.MustCompile(`^MIA-\d{6}$`)

var citizenIDSpace = big.NewInt(1_000_000)

// CitizenIDGenerator produces a new public citizen identifier
type CitizenIDGenerator func() (string, error)

// NewCitizenID returns a random identifier of the form MIA-NNNNNN.
func NewCitizenID() (string, error) {
	n, err := rand.Int(rand.Reader, citizenIDSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate citizen id: %w", err)
	}
	return fmt.Sprintf("%s%06d", CitizenIDPrefix, n.Int64()), nil
}

// IsCitizenID reports whether s is a well-formed citizen identifier
func IsCitizenID(s string) bool {
	return citizenIDPattern.MatchString(s)
}
