package builder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/pkg/policy"
)

func TestCapCompute_CapAllToggle(t *testing.T) {
	deltas := []policy.CapDelta{
		{Add: true, CapAll: true},
		{Add: false, Cap: rbacflow.CapSetGID},
	}
	cs := CapCompute(deltas)
	require.True(t, cs.SetUID)
	require.False(t, cs.SetGID)
}

func TestCapCompute_DeclarationOrderMatters(t *testing.T) {
	deltas := []policy.CapDelta{
		{Add: true, Cap: rbacflow.CapSetUID},
		{Add: false, Cap: rbacflow.CapSetUID},
	}
	cs := CapCompute(deltas)
	require.False(t, cs.SetUID)
}

func TestResolveTransition_Unspecified(t *testing.T) {
	all := map[string]bool{"u1": true, "u2": true}
	out := resolveTransition(policy.TransitionPolicy{Kind: policy.PolicyUnspecified}, all)
	require.True(t, out["u1"])
	require.True(t, out["u2"])
	require.True(t, out[rbacflow.DontCare])
}

func TestResolveTransition_AllowWithNonRoleAddsDontCare(t *testing.T) {
	all := map[string]bool{"u1": true}
	out := resolveTransition(policy.TransitionPolicy{Kind: policy.PolicyAllow, Roles: []string{"u1", "notarole"}}, all)
	require.True(t, out["u1"])
	require.True(t, out[rbacflow.DontCare])
	require.False(t, out["notarole"])
}

func TestResolveTransition_Deny(t *testing.T) {
	all := map[string]bool{"u1": true, "u2": true}
	out := resolveTransition(policy.TransitionPolicy{Kind: policy.PolicyDeny, Roles: []string{"u1"}}, all)
	require.False(t, out["u1"])
	require.True(t, out["u2"])
	require.True(t, out[rbacflow.DontCare])
}

func TestBuild_PopulatesPerms(t *testing.T) {
	pol := &policy.Policy{Roles: []policy.Role{
		{
			Name: "user1",
			Kind: rbacflow.KindUser,
			Subjects: []policy.Subject{
				{Path: "/", Objects: []policy.Object{{Path: "/etc/shadow", Permission: "rh"}}},
			},
		},
	}}
	tbl := Build(pol, map[string]bool{"user1": true}, nil)
	require.Equal(t, "rh", tbl.Perms[RSOKey{Role: "user1", Subject: "/", Object: "/etc/shadow"}])
	require.True(t, tbl.RoleSubjectObjects[RSKey{Role: "user1", Subject: "/"}]["/etc/shadow"])
}
