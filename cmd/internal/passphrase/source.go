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

// FileSuffix names the companion variable that points at a passphrase file,
// e.g. REWARD_KEYSTORE_PASS_FILE.
const FileSuffix = "_FILE"

// Source resolves a keystore passphrase once and caches the result. It looks
// in order at the file named by <envVar>_FILE, at envVar itself, and finally
// prompts on the terminal.
type Source struct {
	envVar string
	prompt string
	tty    *os.File
	out    io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource builds a source reading envVar and its _FILE companion before
// prompting with prompt.
func NewSource(envVar, prompt string) *Source {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Keystore passphrase: "
	}
	return &Source{envVar: strings.TrimSpace(envVar), prompt: prompt, tty: os.Stdin, out: os.Stderr}
}

// Get returns the passphrase, resolving it on first use.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if path, ok := os.LookupEnv(s.envVar + FileSuffix); ok && strings.TrimSpace(path) != "" {
			return fromFile(strings.TrimSpace(path))
		}
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	return s.fromTerminal()
}

// fromFile reads the first line of path. Trailing newlines are dropped so
// files written by echo work unchanged.
func fromFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read passphrase file: %w", err)
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", fmt.Errorf("passphrase file %s is empty", path)
	}
	return line, nil
}

func (s *Source) fromTerminal() (string, error) {
	fd := int(s.tty.Fd())
	if !term.IsTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s, %s%s or run interactively", s.envVar, s.envVar, FileSuffix)
		}
		return "", errors.New("keystore passphrase required and no terminal available")
	}
	fmt.Fprint(s.out, s.prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(s.out)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	return string(raw), nil
}
