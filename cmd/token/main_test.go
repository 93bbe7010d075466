package main

import (
	"bytes"
	"strings"
	"testing"

	"skedit/pkg/auth"
	"skedit/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "token-command-secret-0123456789"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestIssueToken(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, secret)

	token, err := run(t, "--user", "root", "--name", "Root", "--role", "admin")
	require.NoError(t, err)

	p, err := auth.NewVerifier(secret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "root", p.UserID)
	assert.True(t, p.IsAdmin())
}

func TestIssueToken_Rejects(t *testing.T) {
	t.Setenv(config.EnvJWTSecret, secret)

	_, err := run(t, "--user", "alice", "--role", "owner")
	assert.Error(t, err)

	_, err = run(t)
	assert.Error(t, err)

	t.Setenv(config.EnvJWTSecret, "")
	_, err = run(t, "--user", "alice")
	assert.Error(t, err)
}
