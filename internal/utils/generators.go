package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// ticketCodeAlphabet leaves out 0/O and 1/I/L so codes survive being read aloud.
const ticketCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateID returns a random UUID v4 string.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateTicketCode returns an opaque, human-readable code of the given
// length. It carries no information about queue position.
func GenerateTicketCode(length int) (string, error) {
	max := big.NewInt(int64(len(ticketCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = ticketCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
