package main

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/chazu/jnibind/sig"
)

// parseArg converts a command-line word to the Go value the bridge
// expects for t. "null" passes a null reference for string and class tags.
func parseArg(t sig.Type, s string) (any, error) {
	switch t.Kind() {
	case sig.KindBoolean:
		return strconv.ParseBool(s)
	case sig.KindByte:
		n, err := strconv.ParseInt(s, 0, 8)
		return int8(n), err
	case sig.KindChar:
		r, size := utf8.DecodeRuneInString(s)
		if size != len(s) || r == utf8.RuneError || r > 0xFFFF {
			return nil, fmt.Errorf("%q is not a single UTF-16 character", s)
		}
		return uint16(r), nil
	case sig.KindShort:
		n, err := strconv.ParseInt(s, 0, 16)
		return int16(n), err
	case sig.KindInt:
		n, err := strconv.ParseInt(s, 0, 32)
		return int32(n), err
	case sig.KindLong:
		return strconv.ParseInt(s, 0, 64)
	case sig.KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case sig.KindDouble:
		return strconv.ParseFloat(s, 64)
	case sig.KindString:
		if s == "null" {
			return nil, nil
		}
		return s, nil
	case sig.KindObject, sig.KindArray:
		if s == "null" {
			return nil, nil
		}
		return nil, fmt.Errorf("%s arguments can only be null from the command line", t)
	}
	return nil, fmt.Errorf("%s is not a parameter type", t)
}

func parseArgs(types []sig.Type, words []string) ([]any, error) {
	if len(types) != len(words) {
		return nil, fmt.Errorf("%d argument types but %d arguments", len(types), len(words))
	}
	out := make([]any, len(words))
	for i, w := range words {
		v, err := parseArg(types[i], w)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}
