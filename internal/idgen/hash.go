// Package idgen derives short, content-based issue IDs such as "tl-k3f".
package idgen

import (
	"crypto/sha256"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	// MinLength is the minimum number of base36 characters in a generated ID.
	MinLength = 3
	// MaxLength is the maximum number of base36 characters in a generated ID.
	MaxLength = 8
	// MaxCollisionProbability is the threshold above which the adaptive length
	// is increased. Based on the birthday paradox formula.
	MaxCollisionProbability = 0.25
	// MaxNonce is the maximum nonce value tried before escalating ID length.
	MaxNonce = 9
)

// ErrExhausted is returned when every nonce at every length collides.
var ErrExhausted = errors.New("idgen: no free id")

// Content is the material an ID is hashed from.
type Content struct {
	Title   string
	Creator string
	Created time.Time
}

// HashID generates a deterministic ID from c:
//  1. Join title, creator, creation time and nonce with unit separators
//  2. Compute SHA256 of that string
//  3. Interpret the leading bytes as a big-endian integer, mod 36^length
//  4. Encode as base36, zero-padded to exactly length characters
func HashID(prefix string, c Content, nonce, length int) string {
	content := strings.Join([]string{
		c.Title,
		c.Creator,
		strconv.FormatInt(c.Created.UnixNano(), 10),
		strconv.Itoa(nonce),
	}, "\x1f")
	hash := sha256.Sum256([]byte(content))

	// Six bits per base36 digit covers log2(36) with room to spare.
	numBytes := (length*6 + 7) / 8
	n := new(big.Int).SetBytes(hash[:numBytes])

	mod := new(big.Int).Exp(big.NewInt(36), big.NewInt(int64(length)), nil)
	n.Mod(n, mod)

	encoded := n.Text(36)
	if pad := length - len(encoded); pad > 0 {
		encoded = strings.Repeat("0", pad) + encoded
	}
	return prefix + encoded
}

// Generate returns the first hashed ID for c that taken does not claim,
// starting at the adaptive length for existing issues or minLength, whichever
// is longer. Each length tries nonces 0..MaxNonce before growing.
func Generate(prefix string, c Content, minLength, existing int, taken func(id string) bool) (string, error) {
	for length := max(AdaptiveLength(existing), minLength); length <= MaxLength; length++ {
		for nonce := 0; nonce <= MaxNonce; nonce++ {
			id := HashID(prefix, c, nonce, length)
			if !taken(id) {
				return id, nil
			}
		}
	}
	return "", ErrExhausted
}

// NormalizePrefix lower-cases a configured prefix and makes sure it ends in
// exactly one dash: "TL" and "tl-" both become "tl-".
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.ToLower(strings.TrimSpace(prefix)), "-")
	if prefix == "" {
		return ""
	}
	return prefix + "-"
}

// AdaptiveLength calculates the minimum ID length needed for the given
// number of existing issues, using the birthday paradox collision formula:
//
//	P(collision) ≈ 1 - e^(-n²/2N)
//
// where n = existingCount and N = 36^length.
func AdaptiveLength(existingCount int) int {
	for length := MinLength; length <= MaxLength; length++ {
		namespace := math.Pow(36, float64(length))
		n := float64(existingCount)
		if 1-math.Exp(-(n*n)/(2*namespace)) < MaxCollisionProbability {
			return length
		}
	}
	return MaxLength
}
