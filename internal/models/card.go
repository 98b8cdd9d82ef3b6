package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CanonicalCardCode reduces a raw card code to the string form of its
// integer value, so codes coming from the extract and from the store
// always compare type-stably ("0001001" and "1001" are the same card).
// Fractional or non-numeric input is an input-validation error, never
// silently coerced.
func CanonicalCardCode(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("empty card code")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("card code %q is not an integer", raw)
	}
	return strconv.FormatInt(n, 10), nil
}
