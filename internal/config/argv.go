package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// argvScanner splits a shell-like command line. It honors single and double
// quotes and backslash escapes, and expands $VAR and ${VAR} everywhere except
// inside single quotes. It never runs a shell.
type argvScanner struct {
	argv    []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escape  bool
	pending strings.Builder // unquoted or double-quoted text awaiting expansion
}

func (s *argvScanner) literal(r rune) {
	s.flushPending()
	s.word.WriteRune(r)
	s.inWord = true
}

func (s *argvScanner) expandable(r rune) {
	s.pending.WriteRune(r)
	s.inWord = true
}

func (s *argvScanner) flushPending() {
	if s.pending.Len() == 0 {
		return
	}
	s.word.WriteString(os.ExpandEnv(s.pending.String()))
	s.pending.Reset()
}

func (s *argvScanner) endWord() {
	s.flushPending()
	if s.inWord {
		s.argv = append(s.argv, s.word.String())
	}
	s.word.Reset()
	s.inWord = false
}

func (s *argvScanner) scan(r rune) {
	switch {
	case s.escape:
		s.literal(r)
		s.escape = false
	case r == '\\' && s.quote != '\'':
		s.escape = true
	case s.quote == '\'':
		if r == '\'' {
			s.quote = 0
			return
		}
		s.literal(r)
	case s.quote == '"':
		if r == '"' {
			s.quote = 0
			return
		}
		s.expandable(r)
	case r == '\'' || r == '"':
		s.quote = r
		s.inWord = true
	case unicode.IsSpace(r):
		s.endWord()
	default:
		s.expandable(r)
	}
}

func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var s argvScanner
	for _, r := range input {
		s.scan(r)
	}

	switch {
	case s.escape:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case s.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	s.endWord()
	return s.argv, nil
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
