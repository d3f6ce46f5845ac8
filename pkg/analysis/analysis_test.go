package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/flow"
	"github.com/pthm/rbacflow/internal/graph"
	"github.com/pthm/rbacflow/internal/reachability"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "policy.conf")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestScenario_EmptyPolicy(t *testing.T) {
	p := writePolicy(t, "")
	a, err := Build(p, Options{})
	require.NoError(t, err)
	require.Empty(t, a.Policy.Roles)
	require.Empty(t, a.Graph.States)

	entry := rbacflow.State{Special: rbacflow.DontCare, User: rbacflow.DontCare, Group: rbacflow.DontCare, Subject: "/"}
	require.Empty(t, a.DirectFlow(entry, "/etc/shadow", flow.ModeRead))
}

func TestScenario_HiddenPermissionSuppressesRead(t *testing.T) {
	p := writePolicy(t, "role user1 u\nsubject /\n\t/etc/shadow rh\n")
	a, err := Build(p, Options{})
	require.NoError(t, err)

	entry := rbacflow.State{Special: rbacflow.DontCare, User: "user1", Group: rbacflow.DontCare, Subject: "/"}
	results := a.DirectFlow(entry, "/etc/shadow", flow.ModeRead)
	require.Empty(t, results)
}

func TestScenario_InheritanceGrantsReadThroughGMP(t *testing.T) {
	p := writePolicy(t, "role user1 u\n"+
		"subject /usr\n\t/etc/passwd r\n"+
		"subject /usr/bin\n\t/bin/true x\n")
	a, err := Build(p, Options{})
	require.NoError(t, err)

	entry := rbacflow.State{Special: rbacflow.DontCare, User: "user1", Group: rbacflow.DontCare, Subject: "/usr/bin/sh"}
	results := a.DirectFlow(entry, "/etc/passwd", flow.ModeRead)
	require.NotEmpty(t, results)
	require.Equal(t, entry, results[0].At)
}

func TestScenario_ExecBestCaseVsNormalMultiplicity(t *testing.T) {
	content := "role user1 u\n" +
		"subject /\n" +
		"\t/bin/sh x\n" +
		"\t+CAP_SETUID\n" +
		"\t+CAP_SETGID\n" +
		"role user2 u\n" +
		"subject /\n\t/ r\n" +
		"role group1 g\n" +
		"subject /\n\t/ r\n" +
		"role group2 g\n" +
		"subject /\n\t/ r\n"
	p := writePolicy(t, content)

	entry := rbacflow.State{Special: rbacflow.DontCare, User: "user1", Group: "group1", Subject: "/"}

	normal, err := Build(p, Options{Options: graph.Options{BestCase: false}})
	require.NoError(t, err)
	require.Equal(t, 9, countExecEdges(normal.Graph.TransMap[entry], "/bin/sh"))

	best, err := Build(p, Options{Options: graph.Options{BestCase: true}})
	require.NoError(t, err)
	require.Equal(t, 1, countExecEdges(best.Graph.TransMap[entry], "/bin/sh"))
}

func countExecEdges(edges []rbacflow.Edge, obj string) int {
	n := 0
	for _, e := range edges {
		if e.Label.Kind == rbacflow.LabelExec && e.Label.Arg == obj {
			n++
		}
	}
	return n
}

func TestScenario_IndirectFlowFixture(t *testing.T) {
	content := "role user1 u\n" +
		"subject /\n\t/secret r\n\t/tmp/x w\n" +
		"role user2 u\n" +
		"subject /\n\t/tmp/x r\n"
	p := writePolicy(t, content)
	a, err := Build(p, Options{})
	require.NoError(t, err)

	s1 := rbacflow.State{Special: rbacflow.DontCare, User: "user1", Group: rbacflow.DontCare, Subject: "/"}
	s2 := rbacflow.State{Special: rbacflow.DontCare, User: "user2", Group: rbacflow.DontCare, Subject: "/"}

	results := a.IndirectFlow(s1, s2, "/secret")
	require.Len(t, results, 1)
	require.Equal(t, "/tmp/x", results[0].Intermediate)
}

func TestScenario_BlacklistEnforcement(t *testing.T) {
	content := "role user1 u\n" +
		"role_transitions admin\n" +
		"subject /\n\t/ r\n" +
		"role admin sA\n" +
		"subject /\n\t/ r\n"
	p := writePolicy(t, content)

	withoutAdmin, err := Build(p, Options{Options: graph.Options{Admin: false}})
	require.NoError(t, err)
	entry := rbacflow.State{Special: rbacflow.DontCare, User: "user1", Group: rbacflow.DontCare, Subject: "/"}
	states := reachability.ReachableStates(withoutAdmin.Graph, entry)
	for s := range states {
		require.NotEqual(t, "admin", s.Special)
	}

	withAdmin, err := Build(p, Options{Options: graph.Options{Admin: true}})
	require.NoError(t, err)
	states2 := reachability.ReachableStates(withAdmin.Graph, entry)
	found := false
	for s := range states2 {
		if s.Special == "admin" {
			found = true
		}
	}
	require.True(t, found)
}
