package service

import (
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultCodeLength  = 6
	defaultMaxAttempts = 10
	base62Alphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var shortcodePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// RandomSource returns size symbols drawn uniformly from alphabet.
type RandomSource func(alphabet string, size int) (string, error)

// ShortcodeGenerator генерирует случайные base62-коды, избегая уже занятых
type ShortcodeGenerator struct {
	length      int
	maxAttempts int
	random      RandomSource
}

func NewShortcodeGenerator(length int) *ShortcodeGenerator {
	return NewShortcodeGeneratorWithSource(length, defaultMaxAttempts, gonanoid.Generate)
}

func NewShortcodeGeneratorWithSource(length, maxAttempts int, random RandomSource) *ShortcodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &ShortcodeGenerator{
		length:      length,
		maxAttempts: maxAttempts,
		random:      random,
	}
}

// Generate draws at most maxAttempts candidates and returns the first one absent from existing.
func (g *ShortcodeGenerator) Generate(existing map[string]struct{}) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		code, err := g.random(base62Alphabet, g.length)
		if err != nil {
			return "", fmt.Errorf("failed to generate shortcode: %w", err)
		}
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// ValidateShortcode проверяет пользовательский код; исправлять его молча нельзя
func ValidateShortcode(code string) error {
	if !shortcodePattern.MatchString(code) {
		return ErrInvalidShortcode
	}
	return nil
}
