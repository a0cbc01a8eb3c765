package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host           string        `env:"HOST,default=localhost"`
	Port           int           `env:"PORT,default=5000"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO"`
	AbsenceTimeout time.Duration `env:"ABSENCE_TIMEOUT,default=10s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=5s"`
	HealthInterval time.Duration `env:"HEALTH_INTERVAL,default=30s"`

	// Listing cap applied when a reader asks for messages without an
	// explicit limit; unset means the whole visible log.
	LimitMessages *int `env:"LIMIT_MESSAGES"`

	// Comma-separated word list; empty disables moderation.
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// SplitWords turns the comma-separated CENSORED_WORDS value into a
// clean word list.
func SplitWords(str string) []string {
	var words []string
	for _, w := range strings.Split(str, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}
