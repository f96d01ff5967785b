package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturely/backend/internal/auth"
)

func TestRenderStatus(t *testing.T) {
	out := renderStatus(map[string]int{"completed": 12, "failed": 1}, 3, 0)

	assert.Contains(t, out, "sessions.completed")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "queue.pending")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "sessions.recording") {
			assert.Contains(t, line, " 0 ")
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	assert.Contains(t, out, "only")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	userID := uuid.New()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", userID.String(), "--email", "ops@example.com"})
	require.NoError(t, cmd.Execute())

	claims, err := auth.NewJWTService("cli-secret", 1).Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestTokenCommandRejectsBadUser(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--user", "nope"})
	assert.Error(t, cmd.Execute())
}

func TestProcessRequiresValidID(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"process", "not-a-uuid"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session id")
}
