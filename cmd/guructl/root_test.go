package main

import (
	stdzip "archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guru/internal/bootstrap"
	"guru/internal/infra"
	"guru/internal/middleware"
	"guru/internal/payment"
)

func testConfig() *infra.Config {
	return &infra.Config{
		StoreDriver:    "memory",
		BlobDriver:     "memory",
		StorageBaseURL: "https://cdn.guru.lk",
		AnswerProvider: "static",
		Verifier:       "sms",
		JWTSecret:      "cli-secret",
	}
}

func newTestCLI(t *testing.T) *cli {
	t.Helper()
	c := &cli{
		open: func(ctx context.Context) (*bootstrap.Services, error) {
			return bootstrap.Open(ctx, testConfig(), zerolog.Nop())
		},
		loadConfig: func() (*infra.Config, error) { return testConfig(), nil },
	}
	t.Cleanup(c.close)
	return c
}

func run(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(c)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func submit(t *testing.T, c *cli, userID, sms string) string {
	t.Helper()
	svc, err := c.services(context.Background())
	require.NoError(t, err)
	p, err := svc.Payments.Submit(context.Background(), payment.SubmitRequest{
		UserID:          userID,
		Plan:            "scholar",
		Amount:          499,
		SlipReference:   "https://cdn.guru.lk/slips/x.png",
		WhatsAppContact: "0771234567",
		SupportingText:  sms,
	})
	require.NoError(t, err)
	return p.ID
}

func TestPaymentsVerifyAndDecide(t *testing.T) {
	c := newTestCLI(t)
	id := submit(t, c, "student-1", "")

	out, err := run(t, c, "payments", "list", "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, c, "payments", "verify", id, "--sms", "Rs.499.00 credited to your account")
	require.NoError(t, err)
	assert.Contains(t, out, "matched")

	out, err = run(t, c, "--operator", "op-9", "payments", "decide", id, "approve")
	require.NoError(t, err)
	assert.Contains(t, out, "approved")

	out, err = run(t, c, "plan", "show", "student-1")
	require.NoError(t, err)
	assert.Contains(t, out, "plan=scholar credits=100")

	_, err = run(t, c, "payments", "decide", id, "reject")
	assert.Error(t, err)
}

func TestPaymentsOperatorVerdict(t *testing.T) {
	c := newTestCLI(t)
	id := submit(t, c, "student-2", "")

	out, err := run(t, c, "payments", "verify", id, "--verdict", "no-match", "--reason", "amount missing")
	require.NoError(t, err)
	assert.Contains(t, out, "rejected")

	_, err = run(t, c, "payments", "verify", id, "--verdict", "perhaps")
	assert.Error(t, err)
	_, err = run(t, c, "payments", "list", "--status", "lost")
	assert.Error(t, err)
}

func TestPlanSetIsIdempotentPerKey(t *testing.T) {
	c := newTestCLI(t)

	out, err := run(t, c, "plan", "set", "student-3", "genius", "--key", "support-ticket-42")
	require.NoError(t, err)
	assert.Contains(t, out, "plan=genius credits=unlimited")

	out, err = run(t, c, "plan", "set", "student-3", "genius", "--key", "support-ticket-42")
	require.NoError(t, err)
	assert.Contains(t, out, "already applied")

	_, err = run(t, c, "plan", "set", "student-3", "platinum")
	assert.Error(t, err)
}

func TestResetAndPostgresOnlyCommands(t *testing.T) {
	c := newTestCLI(t)

	out, err := run(t, c, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "0 entitlements refilled")

	_, err = run(t, c, "migrate")
	assert.ErrorContains(t, err, "postgres")
	_, err = run(t, c, "credentials", "set", "openai", "--key", "sk-test")
	assert.ErrorContains(t, err, "postgres")
}

func TestTokenCommand(t *testing.T) {
	c := newTestCLI(t)
	out, err := run(t, c, "token", "op-1", "--role", "operator")
	require.NoError(t, err)

	claims, err := middleware.ParseToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.Subject)
	assert.Equal(t, middleware.RoleOperator, claims.Role)

	_, err = run(t, c, "token", "op-1", "--role", "root")
	assert.Error(t, err)
}

func TestPaymentsExport(t *testing.T) {
	c := newTestCLI(t)
	id := submit(t, c, "student-4", "")
	dest := filepath.Join(t.TempDir(), "payments.zip")

	out, err := run(t, c, "payments", "export", "--status", "pending", "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "1 payments written")

	zr, err := stdzip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, id+".json", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	var got map[string]any
	require.NoError(t, json.NewDecoder(rc).Decode(&got))
	assert.Equal(t, "student-4", got["user_id"])
	assert.Equal(t, "pending", got["status"])

	_, err = run(t, c, "payments", "export")
	assert.ErrorContains(t, err, "--out")
}
