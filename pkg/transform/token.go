// pkg/transform/token.go
package transform

import "strings"

// TokenAlphabet is the 62-symbol alphabet random tokens are drawn from
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultTokenLength is used when a token length is missing or unusable
const DefaultTokenLength = 8

// RandomToken draws a token of the given length uniformly from TokenAlphabet.
// Every call is an independent draw; callers that need the same token for the
// same source value must cache it.
func RandomToken(src Source, length int) string {
	if length <= 0 {
		length = DefaultTokenLength
	}

	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(TokenAlphabet[src.IntN(len(TokenAlphabet))])
	}
	return sb.String()
}
