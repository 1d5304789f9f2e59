package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"moire/internal/auth"
)

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func runCLI(args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fromStdin := fs.Bool("stdin", false, "read the password from the first line of stdin")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 || (*fromStdin && fs.NArg() != 0) {
		_, _ = fmt.Fprintln(errOut, "usage: hash-password [--stdin | <password>]")
		return 2
	}

	var (
		password string
		err      error
	)
	switch {
	case fs.NArg() == 1:
		password = fs.Arg(0)
	case *fromStdin:
		password, err = readLine(in)
	default:
		password, err = promptTwice(errOut)
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	if password == "" {
		_, _ = fmt.Fprintln(errOut, "ERROR: password must not be empty")
		return 1
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "ERROR: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, hash)
	_, _ = fmt.Fprintln(errOut, "set MOIRE_AUTH_PASS to the hash above")
	return 0
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptTwice(errOut io.Writer) (string, error) {
	password, err := promptPassword(errOut, "Password: ")
	if err != nil {
		return "", err
	}
	confirm, err := promptPassword(errOut, "Confirm: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func promptPassword(errOut io.Writer, prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal (use --stdin)")
	}
	_, _ = fmt.Fprint(errOut, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(pass)), nil
}
