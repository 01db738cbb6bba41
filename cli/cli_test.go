package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twister-backend/internal/commitment"
	"twister-backend/internal/dto"
	"twister-backend/internal/field"
	"twister-backend/internal/handlers"
	"twister-backend/internal/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLeafCommandDerivesNote(t *testing.T) {
	out, err := execute(t, "leaf", "--passphrase", "SecretPassword", "--raw-secret", "", "--amount", "0.1")
	require.NoError(t, err)

	var resp dto.NoteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	secret, err := field.SecretFromPassphrase("SecretPassword")
	require.NoError(t, err)
	amount, err := field.ParseEther("0.1")
	require.NoError(t, err)
	note, err := commitment.NewCodec(commitment.NewPoseidonHasher()).Note(secret, amount)
	require.NoError(t, err)

	assert.Equal(t, note.Leaf.Hex(), resp.Leaf)
	assert.Equal(t, note.Nullifier.Hex(), resp.Nullifier)
	assert.Equal(t, "100000000000000000", resp.AmountWei)
	assert.False(t, resp.Recorded)
}

func TestLeafCommandRejectsTwoSecrets(t *testing.T) {
	_, err := execute(t, "leaf", "--passphrase", "SecretPassword", "--raw-secret", "0x01", "--amount", "0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInputInvalid)
}

func TestTokenCommandUsesConfiguredSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwtSecret: cli-secret\n"), 0o600))

	out, err := execute(t, "token", "--config", path, "--operator", "alice", "--ttl", "1h")
	require.NoError(t, err)

	var token dto.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(out), &token))

	claims, err := handlers.ValidateJWTToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
}
