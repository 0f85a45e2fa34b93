// Package codegen emits Go source for patterns that passed analysis.
package codegen

import (
	"fmt"
	"strings"
	"unicode"
)

// Names used in generated code
const (
	RegexpPackage   = "regexp"
	MustCompileName = "MustCompile"
	PatternsName    = "Patterns"
	DefaultPrefix   = "Pattern"
)

// LowerFirst converts the first character of a string to lowercase.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}

// UpperFirst converts the first character of a string to uppercase.
func UpperFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]&^0x20) + s[1:]
}

// Identifier turns a free-form name into an exported Go identifier:
// "user email" becomes "UserEmail". An empty result falls back to
// Pattern<index>.
func Identifier(name string, index int) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	var b strings.Builder
	for _, w := range words {
		b.WriteString(UpperFirst(w))
	}
	id := b.String()
	switch {
	case id == "":
		return fmt.Sprintf("%s%d", DefaultPrefix, index)
	case unicode.IsDigit(rune(id[0])):
		return DefaultPrefix + id
	}
	return id
}
