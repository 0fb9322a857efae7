package utils

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"golang.org/x/term"
)

// PasswordPrompt asks the user for a password
type PasswordPrompt func(username string) (string, error)

// ParseAuth parses a USER[:PASS] string. When no password is given it falls
// back to the PASS environment variable and then to prompt.
func ParseAuth(s string, prompt PasswordPrompt) (string, string, error) {
	username, password, _ := strings.Cut(s, ":")
	if username == "" {
		return "", "", fmt.Errorf("username cannot be empty")
	}

	if password == "" {
		password = os.Getenv("PASS")
	}

	if password == "" && prompt != nil {
		var err error
		password, err = prompt(username)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password for %s: %w", username, err)
		}
	}

	return username, password, nil
}

// TerminalPrompt reads a password from the controlling terminal without echo
func TerminalPrompt(username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, set PASS or use --auth USER:PASS")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// CurrentUsername returns the name of the OS user running the process
func CurrentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
