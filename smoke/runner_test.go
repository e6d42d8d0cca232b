package smoke

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()

	base, stop, err := SelfHosted(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stop() })
	return base
}

func TestRunnerFullScenario(t *testing.T) {
	base := startServer(t)

	report, err := NewRunner(base).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Failed())
	assert.Equal(t, 6, report.Users)
	assert.Equal(t, 6, report.Tokens)
	assert.Equal(t, 12, report.Policies)
	assert.Equal(t, 12, report.Claims)
	assert.Equal(t, 2, report.Reviewed)
}

func TestRunnerRecordsDuplicateRegistrations(t *testing.T) {
	base := startServer(t)

	_, err := NewRunner(base, WithRunID("first")).Run(context.Background())
	require.NoError(t, err)

	report, err := NewRunner(base, WithRunID("first")).Run(context.Background())
	require.NoError(t, err)

	failed := report.Failed()
	require.NotEmpty(t, failed)
	assert.Equal(t, "register patient1", failed[0].Name)
	assert.Equal(t, 409, failed[0].Status)
	assert.Zero(t, report.Users)
}

func TestRunnerFailsWithoutServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewRunner("http://" + addr).Run(context.Background())
	assert.Error(t, err)
}
