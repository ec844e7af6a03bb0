// Package normalizers provides the named string normalizers applied to observed emails and phone numbers
package normalizers

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = make(map[string]Normalizer)

func init() {
	Register("trim", Trim)
	Register("lowercase", Lowercase)
	Register("uppercase", Uppercase)
	Register("nemail", NormalizeEmail)
	Register("nphone", NormalizePhone)
	Register("digits_only", DigitsOnly)
	Register("remove_whitespace", RemoveWhitespace)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Chain is an ordered list of normalizers applied one after another
type Chain struct {
	names []string
	fns   []Normalizer
}

// NewChain resolves the named normalizers. Unknown names are an error.
func NewChain(names ...string) (*Chain, error) {
	chain := &Chain{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fn, ok := Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown normalizer %q", name)
		}
		chain.names = append(chain.names, name)
		chain.fns = append(chain.fns, fn)
	}
	return chain, nil
}

// MustChain is NewChain that panics on unknown names
func MustChain(names ...string) *Chain {
	chain, err := NewChain(names...)
	if err != nil {
		panic(err)
	}
	return chain
}

// ParseChain builds a chain from a comma separated list such as "trim,lowercase"
func ParseChain(spec string) (*Chain, error) {
	return NewChain(strings.Split(spec, ",")...)
}

// Names returns the normalizer names in application order
func (c *Chain) Names() []string {
	return append([]string(nil), c.names...)
}

// Apply runs every normalizer in order
func (c *Chain) Apply(value string) string {
	for _, fn := range c.fns {
		value = fn(value)
	}
	return value
}

// ApplyOptional normalizes an optional value. A value that normalizes to the empty string becomes absent.
func (c *Chain) ApplyOptional(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := c.Apply(*value)
	if normalized == "" {
		return nil
	}
	return &normalized
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Uppercase converts string to uppercase
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps the digits of a phone number and a leading '+'
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var result strings.Builder
	for i, r := range s {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			result.WriteRune(r)
		}
	}
	if result.String() == "+" {
		return ""
	}
	return result.String()
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
