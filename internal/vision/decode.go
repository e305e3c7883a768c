package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterValidation adds a custom tag usable on result structs passed to Decode.
func RegisterValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}

// Outcome is the tagged result of decoding a model reply: either the parsed
// result, or the fallback together with the reason parsing was abandoned.
type Outcome[T any] struct {
	Result T
	Parsed bool
	Reason string
}

// Parsed builds a successful outcome.
func Parsed[T any](result T) Outcome[T] {
	return Outcome[T]{Result: result, Parsed: true}
}

// Fallback builds an outcome carrying the substitute result.
func Fallback[T any](result T, reason string) Outcome[T] {
	return Outcome[T]{Result: result, Reason: reason}
}

// Kind reports "parsed" or "fallback".
func (o Outcome[T]) Kind() string {
	if o.Parsed {
		return "parsed"
	}
	return "fallback"
}

var (
	errNoObject = errors.New("no JSON object in reply")
	errNUL      = errors.New("NUL character in string value")
)

// Decode extracts the first top-level JSON object in reply that decodes into
// T and passes struct validation. Unknown fields are ignored, and a candidate
// carrying a \u0000 escape is rejected since Postgres text cannot hold NUL.
// When no candidate qualifies the fallback is returned with the last failure
// as reason.
func Decode[T any](reply string, fallback T) Outcome[T] {
	candidates := objects(reply)
	if len(candidates) == 0 {
		return Fallback(fallback, errNoObject.Error())
	}
	var lastErr error
	for _, c := range candidates {
		if escapedNUL(c) {
			lastErr = errNUL
			continue
		}
		var v T
		if err := json.Unmarshal(c, &v); err != nil {
			lastErr = fmt.Errorf("decode: %w", err)
			continue
		}
		if err := validate.Struct(&v); err != nil {
			lastErr = fmt.Errorf("validate: %w", err)
			continue
		}
		return Parsed(v)
	}
	return Fallback(fallback, lastErr.Error())
}

// escapedNUL reports whether the JSON text b contains a \u0000 escape.
// Backslashes only occur inside strings, so each one starts an escape.
func escapedNUL(b []byte) bool {
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' {
			continue
		}
		if bytes.HasPrefix(b[i+1:], []byte("u0000")) {
			return true
		}
		i++
	}
	return false
}

// objects returns every balanced top-level {...} span in s, in order.
// Braces inside JSON strings are ignored.
func objects(s string) [][]byte {
	b := []byte(s)
	var out [][]byte
	depth, start := 0, -1
	inString, escaped := false, false
	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, bytes.TrimSpace(b[start:i+1]))
				start = -1
			}
		}
	}
	return out
}
