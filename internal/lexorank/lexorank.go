// Package lexorank generates ordinal string keys that position siblings
// without renumbering.
//
// A key is a string of base-62 digits (0-9, A-Z, a-z in ASCII order) read as
// a fraction: "V" is 31/62, "V1" is 31/62 + 1/62². Keys never end in '0', so
// byte order and numeric order agree, and there is always room for another
// key between any two distinct keys. Bisecting two adjacent keys grows the
// result by one digit. Appending after the last key bumps its first digit
// below 'z', so keys grow by one digit only every 61 appends.
package lexorank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = len(digits)

// Default is the key used when neither bound exists: the middle digit.
const Default = "V"

var (
	ErrInvalidKey   = errors.New("lexorank: invalid key")
	ErrInvalidRange = errors.New("lexorank: lower bound must sort below upper bound")
)

// Between returns a key that sorts strictly between before and after.
// An empty before means no lower bound; an empty after means no upper bound.
func Between(before, after string) (string, error) {
	if err := validate(before); err != nil {
		return "", err
	}
	if err := validate(after); err != nil {
		return "", err
	}

	bounded := after != ""
	lo := strings.TrimRight(before, "0")
	hi := strings.TrimRight(after, "0")
	if bounded && (hi == "" || lo >= hi) {
		return "", fmt.Errorf("%w: %q >= %q", ErrInvalidRange, before, after)
	}
	if !bounded {
		if lo == "" {
			return Default, nil
		}
		return successor(lo), nil
	}
	return midpoint(lo, hi, true), nil
}

// successor returns a short key above a: a's prefix up to its first digit
// below 'z', with that digit incremented. A key of all 'z' gains a digit.
func successor(a string) string {
	for i := 0; i < len(a); i++ {
		if d := strings.IndexByte(digits, a[i]); d < base-1 {
			return a[:i] + string(digits[d+1])
		}
	}
	return a + string(digits[1])
}

// Initial returns n distinct, strictly increasing keys spread evenly over the
// key space.
func Initial(n int) []string {
	if n <= 0 {
		return nil
	}

	// Pick the smallest width whose key space holds n+1 evenly spaced slots.
	width := 1
	space := big.NewInt(int64(base))
	limit := big.NewInt(int64(n))
	for space.Cmp(limit) <= 0 {
		space.Mul(space, big.NewInt(int64(base)))
		width++
	}

	keys := make([]string, n)
	slots := big.NewInt(int64(n + 1))
	for i := range keys {
		v := new(big.Int).Mul(big.NewInt(int64(i+1)), space)
		v.Quo(v, slots)
		keys[i] = strings.TrimRight(encode(v, width), "0")
	}
	return keys
}

// midpoint computes the fraction halfway between a and b (or between a and 1
// when bounded is false). Neither input has trailing zeros and a < b.
func midpoint(a, b string, bounded bool) string {
	if bounded {
		// Strip the common prefix, treating a as zero-padded.
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			return b[:n] + midpoint(tail(a, n), b[n:], true)
		}
	}

	da := 0
	if a != "" {
		da = strings.IndexByte(digits, a[0])
	}
	db := base
	if bounded {
		db = strings.IndexByte(digits, b[0])
	}

	if db-da > 1 {
		return string(digits[(da+db+1)/2])
	}

	// The leading digits are consecutive.
	if bounded && len(b) > 1 {
		return b[:1]
	}
	return string(digits[da]) + midpoint(tail(a, 1), "", false)
}

func digitAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return digits[0]
}

func tail(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[n:]
}

func encode(v *big.Int, width int) string {
	out := make([]byte, width)
	b := big.NewInt(int64(base))
	rem := new(big.Int)
	n := new(big.Int).Set(v)
	for i := width - 1; i >= 0; i-- {
		n.QuoRem(n, b, rem)
		out[i] = digits[rem.Int64()]
	}
	return string(out)
}

func validate(key string) error {
	for i := 0; i < len(key); i++ {
		if strings.IndexByte(digits, key[i]) < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
