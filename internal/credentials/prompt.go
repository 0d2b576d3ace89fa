package credentials

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Prompt asks for an email address and a password on the terminal.
// The password is read without echo.
func Prompt() (Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Enter your e-mail address: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return Credentials{}, errors.Wrap(err, "read e-mail")
	}
	email = strings.TrimSpace(email)

	fmt.Print("Enter your password: ")
	password, err := readPassword(reader)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "read password")
	}
	fmt.Println()

	return Credentials{Email: email, Password: password}, nil
}

func readPassword(fallback *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	// Not a terminal (piped input, tests).
	line, err := fallback.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
