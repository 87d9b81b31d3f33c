package credentials

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type env map[string]string

func (e env) get(key string) string {
	return e[key]
}

type scripted struct {
	answers map[string]string
	asked   []string
	secret  []bool
}

func (s *scripted) Prompt(label string, secret bool) (string, error) {
	s.asked = append(s.asked, label)
	s.secret = append(s.secret, secret)
	v, ok := s.answers[label]
	if !ok {
		return "", errors.New("no answer")
	}
	return v, nil
}

func TestAPIKeyOrder(t *testing.T) {
	r := Resolver{
		Config: Config{ApiKey: "from-config"},
		Getenv: env{EnvAPIKey: "from-env"}.get,
	}
	key, src, err := r.APIKey()
	require.NoError(t, err)
	require.Equal(t, "from-config", key)
	require.Equal(t, SourceConfig, src)

	r.Config.ApiKey = "  "
	key, src, err = r.APIKey()
	require.NoError(t, err)
	require.Equal(t, "from-env", key)
	require.Equal(t, SourceEnv, src)

	r.Getenv = env{}.get
	r.Prompter = &scripted{}
	_, _, err = r.APIKey()
	require.ErrorIs(t, err, ErrNoAPIKey)
	require.Contains(t, err.Error(), "config.json")
	require.Contains(t, err.Error(), EnvAPIKey)
}

func TestLoginOrder(t *testing.T) {
	prompter := &scripted{answers: map[string]string{
		"Enter your eBird password: ": "prompted-password",
	}}
	r := Resolver{
		Config:   Config{Username: "config-user"},
		Getenv:   env{EnvUsername: "env-user"}.get,
		Prompter: prompter,
	}

	username, password, err := r.Login()
	require.NoError(t, err)
	require.Equal(t, "config-user", username)
	require.Equal(t, "prompted-password", password)
	require.Equal(t, []string{"Enter your eBird password: "}, prompter.asked)
	require.Equal(t, []bool{true}, prompter.secret)

	r.Config = Config{}
	r.Getenv = env{EnvUsername: "env-user", EnvPassword: "env-password"}.get
	prompter.asked = nil
	username, password, err = r.Login()
	require.NoError(t, err)
	require.Equal(t, "env-user", username)
	require.Equal(t, "env-password", password)
	require.Empty(t, prompter.asked)
}

func TestLoginWithoutPrompter(t *testing.T) {
	r := Resolver{Getenv: env{}.get}
	_, _, err := r.Login()
	require.ErrorIs(t, err, ErrNoLogin)

	r.Prompter = &scripted{}
	_, _, err = r.Login()
	require.ErrorIs(t, err, ErrNoLogin)
}

func TestTerminalPrompterRejectsPipes(t *testing.T) {
	in, out, err := os.Pipe()
	require.NoError(t, err)
	defer in.Close()
	defer out.Close()

	p := TerminalPrompter{In: in, Out: out}
	_, err = p.Prompt("Enter your eBird username/email: ", false)
	require.ErrorIs(t, err, ErrNoTerminal)
}
