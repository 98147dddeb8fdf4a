package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting the operator. The value is cached after the first successful
// retrieval.
type Source struct {
	envVar  string
	confirm bool
	prompt  io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// interactively prompting on the terminal.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), prompt: os.Stderr}
}

// WithConfirmation makes interactive prompts ask twice. Used when creating a
// new keystore.
func (s *Source) WithConfirmation() *Source {
	s.confirm = true
	return s
}

// Get returns the cached passphrase or resolves it on first use.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			if s.envVar != "" {
				s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("keystore passphrase required and no terminal available")
			}
			return
		}

		passphrase, err := s.read(fd, "Enter keystore passphrase: ")
		if err != nil {
			s.err = err
			return
		}
		if strings.TrimSpace(passphrase) == "" {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		if s.confirm {
			again, err := s.read(fd, "Repeat keystore passphrase: ")
			if err != nil {
				s.err = err
				return
			}
			if again != passphrase {
				s.err = errors.New("passphrases do not match")
				return
			}
		}
		s.value = passphrase
	})

	return s.value, s.err
}

func (s *Source) read(fd int, label string) (string, error) {
	fmt.Fprint(s.prompt, label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(raw), nil
}
