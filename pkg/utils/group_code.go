package utils

import (
	"crypto/rand"
)

// Alphabet for join codes: uppercase letters and digits minus the ambiguous
// ones (0/O, 1/I/L) so codes survive being read out loud.
const groupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const GroupCodeLength = 6

// GenerateGroupCode returns a random human-shareable join code. Uniqueness is
// not guaranteed here; the group creation transaction detects collisions via
// the unique index on groups.code and retries with a fresh code.
func GenerateGroupCode() string {
	bytes := make([]byte, GroupCodeLength)
	if _, err := rand.Read(bytes); err != nil {
		Logger.Errorf("crypto/rand failed while generating group code: %v", err)
		return "AAAAAA"
	}

	code := make([]byte, GroupCodeLength)
	for i, b := range bytes {
		code[i] = groupCodeAlphabet[int(b)%len(groupCodeAlphabet)]
	}
	return string(code)
}
