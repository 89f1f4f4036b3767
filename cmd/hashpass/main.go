// Command hashpass prints the bcrypt hash of a customer password, ready to paste
// into the PASSWORD column of the customers sheet.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	authsvc "github.com/mamadbah2/storefront/internal/service/auth"
)

var errEmptyPassword = errors.New("password is empty")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "hashpass:", err)
		os.Exit(1)
	}
}

// run hashes the -password flag, or the first line of stdin when it is unset.
func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("hashpass", flag.ContinueOnError)
	password := fs.String("password", "", "password to hash; read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	if strings.TrimSpace(*password) == "" {
		return errEmptyPassword
	}

	hash, err := authsvc.HashPassword(*password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}
