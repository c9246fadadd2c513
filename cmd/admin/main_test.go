package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCLI(t *testing.T, stdin string) (*cli, *bytes.Buffer) {
	t.Helper()
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LOG_PATH", t.TempDir())
	t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
	t.Setenv("ADMIN_KEY", "key")

	out := &bytes.Buffer{}
	return &cli{
		in:      bufio.NewReader(strings.NewReader(stdin)),
		out:     out,
		stdinFd: -1,
		readPassword: func(int) ([]byte, error) {
			t.Fatal("terminal read not expected")
			return nil, nil
		},
	}, out
}

func TestCreateAdminFromPipedPassword(t *testing.T) {
	c, out := newTestCLI(t, "Adm1n-pass!\nAdm1n-pass!\n")

	err := c.run(context.Background(), []string{"create-admin", "-email", "Root@Example.com", "-username", "root"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "admin root@example.com created")
}

func TestCreateAdminPasswordMismatch(t *testing.T) {
	c, _ := newTestCLI(t, "Adm1n-pass!\nother\n")

	err := c.run(context.Background(), []string{"create-admin", "-email", "root@example.com", "-username", "root"})
	assert.EqualError(t, err, "passwords do not match")
}

func TestCreateAdminRequiresFlags(t *testing.T) {
	c, _ := newTestCLI(t, "")

	err := c.run(context.Background(), []string{"create-admin", "-email", "root@example.com"})
	assert.Error(t, err)
}

func TestPurgeUnverified(t *testing.T) {
	c, out := newTestCLI(t, "")

	require.NoError(t, c.run(context.Background(), []string{"purge-unverified", "-older-than", "24h"}))
	assert.Contains(t, out.String(), "purged 0 unverified accounts older than 24h0m0s")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	c, _ := newTestCLI(t, "")

	err := c.run(context.Background(), []string{"migrate"})
	assert.EqualError(t, err, "migrate requires DB_DRIVER=postgres")
}

func TestUnknownCommand(t *testing.T) {
	c, out := newTestCLI(t, "")

	err := c.run(context.Background(), []string{"bogus"})
	assert.Error(t, err)
	assert.Contains(t, out.String(), "usage: admin")
}
