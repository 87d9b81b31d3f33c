// Package credentials resolves the eBird API key and account login from the
// config file, then the environment, then (for the login only) an
// interactive prompt.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const (
	EnvAPIKey   = "EBIRD_API_KEY"
	EnvUsername = "EBIRD_USERNAME"
	EnvPassword = "EBIRD_PASSWORD"
)

var (
	ErrNoAPIKey = fmt.Errorf(
		"no eBird API key found, add 'ebird_api_key' to config.json or set %s (get one at https://ebird.org/api/keygen)",
		EnvAPIKey,
	)
	ErrNoLogin = fmt.Errorf(
		"no eBird login provided, add 'ebird_username' and 'ebird_password' to config.json or set %s and %s",
		EnvUsername, EnvPassword,
	)
	ErrNoTerminal = errors.New("stdin is not a terminal")
)

// Config is the credential portion of config.json.
type Config struct {
	ApiKey   string `json:"ebird_api_key"`
	Username string `json:"ebird_username"`
	Password string `json:"ebird_password"`
}

type Source string

const (
	SourceConfig Source = "config"
	SourceEnv    Source = "env"
	SourcePrompt Source = "prompt"
)

// Prompter asks the user for a value, secret values must not echo.
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

type Resolver struct {
	Config Config
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// Prompter is consulted last, nil disables prompting.
	Prompter Prompter
}

func (r Resolver) getenv(key string) string {
	if r.Getenv == nil {
		return os.Getenv(key)
	}
	return r.Getenv(key)
}

func (r Resolver) lookup(configured, env string) (string, Source) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, SourceConfig
	}
	if v := strings.TrimSpace(r.getenv(env)); v != "" {
		return v, SourceEnv
	}
	return "", ""
}

// APIKey is never prompted for.
func (r Resolver) APIKey() (string, Source, error) {
	key, src := r.lookup(r.Config.ApiKey, EnvAPIKey)
	if key == "" {
		return "", "", ErrNoAPIKey
	}
	return key, src, nil
}

func (r Resolver) resolve(configured, env, label string, secret bool) (string, Source, error) {
	v, src := r.lookup(configured, env)
	if v != "" {
		return v, src, nil
	}
	if r.Prompter == nil {
		return "", "", ErrNoLogin
	}
	v, err := r.Prompter.Prompt(label, secret)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrNoLogin, err)
	}
	if v == "" {
		return "", "", ErrNoLogin
	}
	return v, SourcePrompt, nil
}

// Login resolves the username and password independently, each falling
// back on its own.
func (r Resolver) Login() (username, password string, err error) {
	username, _, err = r.resolve(r.Config.Username, EnvUsername, "Enter your eBird username/email: ", false)
	if err != nil {
		return "", "", err
	}
	password, _, err = r.resolve(r.Config.Password, EnvPassword, "Enter your eBird password: ", true)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// TerminalPrompter reads from In when it is an interactive terminal.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

func NewTerminalPrompter() TerminalPrompter {
	return TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p TerminalPrompter) Prompt(label string, secret bool) (string, error) {
	if p.In == nil || !isTerminal(p.In) {
		return "", ErrNoTerminal
	}
	fmt.Fprint(p.Out, label)

	if secret {
		value, err := term.ReadPassword(int(p.In.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(value)), nil
	}

	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
