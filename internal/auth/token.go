package auth

import (
	"strings"

	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// TokenPrefix marks bearer tokens issued by this service. Tokens are a
// reversible encoding of the user id: no signature, no expiry, no issuance
// record. Any string with the prefix resolves to whatever id it embeds, so
// they carry no proof of issuance and must not be treated as a security
// boundary.
const TokenPrefix = "mock-token-"

// IssueToken produces the opaque bearer token for a user id
func IssueToken(userID string) string {
	return TokenPrefix + userID
}

// ResolveToken extracts the user id embedded in a token. Malformed tokens
// fail with domain.ErrInvalidToken.
func ResolveToken(token string) (string, error) {
	userID, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok || userID == "" {
		return "", domain.ErrInvalidToken
	}
	return userID, nil
}
