package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flashsol/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T) *miniredis.Miniredis {
	mr := miniredis.RunT(t)
	t.Setenv("FLASHSOL_MASTER_KEY", strings.Repeat("cd", 32))
	t.Setenv("FLASHSOL_SQLITE_PATH", filepath.Join(t.TempDir(), "flashsol.db"))
	t.Setenv("FLASHSOL_REDIS_ADDR", mr.Addr())
	t.Setenv("FLASHSOL_LOG_LEVEL", "error")
	return mr
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "flashsol version "))
}

func TestSessionUnlock(t *testing.T) {
	mr := setupEnv(t)
	require.NoError(t, mr.Set(session.LockKey("u1"), "token"))
	require.NoError(t, mr.Set(session.FlowKey("u1"), `{"flow":"buy","step":"awaiting_amount"}`))

	out, err := run(t, "session", "unlock", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Unlocked 'u1'")
	assert.False(t, mr.Exists(session.LockKey("u1")))
	assert.False(t, mr.Exists(session.FlowKey("u1")))
}

func TestSessionInspect(t *testing.T) {
	mr := setupEnv(t)
	require.NoError(t, mr.Set(session.LockKey("u2"), "token"))
	require.NoError(t, mr.Set(session.FlowKey("u2"), `{"flow":"sell","step":"awaiting_amount"}`))

	out, err := run(t, "session", "inspect", "u2", "--trades", "0")
	require.NoError(t, err)
	assert.Contains(t, out, `"locked": true`)
	assert.Contains(t, out, `"flow": "sell"`)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "quote", "not-a-mint", "1")
	assert.ErrorContains(t, err, "invalid token address")

	_, err = run(t, "quote", "So11111111111111111111111111111111111111112", "abc")
	assert.ErrorContains(t, err, "invalid SOL amount")
}
