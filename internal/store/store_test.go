package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pthm/rbacflow/pkg/report"
)

// newTestStore spins up a throwaway PostgreSQL container, grounded on the
// teacher's testcontainers-backed integration tests, and returns a Store
// connected to it; the container and Store are released via t.Cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping testcontainers-backed store test in -short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rbacflow"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	dsn += "sslmode=disable"

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.ApplyDDL(ctx))
	return s
}

func TestApplyDDL_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ApplyDDL(ctx))
	require.NoError(t, s.ApplyDDL(ctx))
}

func TestSaveRunAndFindingsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	findings := []report.Finding{
		{Kind: report.KindDirectRead, Entry: "_:U:/", Target: "/etc/shadow", State: "_:U:/"},
		{Kind: report.KindWriteExecute, Entry: "_:U:/", Object: "/bin/sh"},
	}

	firstRun, err := s.SaveRun(ctx, "policy.conf", nil)
	require.NoError(t, err)

	runID, err := s.SaveRun(ctx, "policy.conf", findings)
	require.NoError(t, err)
	require.Greater(t, runID, firstRun)

	since, err := s.FindingsSince(ctx, firstRun)
	require.NoError(t, err)
	require.Len(t, since, 2)
	require.Equal(t, report.KindDirectRead, since[0].Kind)
	require.Equal(t, "/etc/shadow", since[0].Target)
	require.Equal(t, report.KindWriteExecute, since[1].Kind)
	require.Equal(t, "/bin/sh", since[1].Object)
}
