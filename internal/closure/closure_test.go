package closure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/internal/builder"
	"github.com/pthm/rbacflow/pkg/policy"
)

func TestPathMatch(t *testing.T) {
	cases := []struct {
		p1, p2 string
		want   bool
	}{
		{"/", "/", true},
		{"/", "/usr", true},
		{"/usr", "/usr/bin", true},
		{"/usr/bin", "/usr", false},
		{"/usr/*", "/usr/bin", true},
		{"/usr/b?n", "/usr/bin", true},
		{"/usr/[a-c]in", "/usr/bin", true},
		{"/opt", "/usr/bin", false},
	}
	for _, c := range cases {
		got := PathMatch(c.p1, c.p2)
		require.Equalf(t, c.want, got, "PathMatch(%q, %q)", c.p1, c.p2)
	}
}

func TestGMP_PicksLongestThenLexicographic(t *testing.T) {
	candidates := []string{"/", "/usr", "/usr/bin", "/usr/binX"}
	got, ok := GMP(candidates, "/usr/bin/sh")
	require.True(t, ok)
	require.Equal(t, "/usr/bin", got)

	tied, ok := GMP([]string{"/usr/bi?", "/usr/b?n"}, "/usr/bin/sh")
	require.True(t, ok)
	require.Equal(t, "/usr/b?n", tied)
}

func TestGMP_NoMatch(t *testing.T) {
	_, ok := GMP([]string{"/opt"}, "/usr/bin")
	require.False(t, ok)
}

func TestApply_InheritsPermissionAndCaps(t *testing.T) {
	pol := &policy.Policy{Roles: []policy.Role{
		{
			Name: "user1",
			Subjects: []policy.Subject{
				{
					Path:         "/usr",
					Objects:      []policy.Object{{Path: "/etc/passwd", Permission: "r"}},
					Capabilities: []policy.CapDelta{{Add: true, Cap: rbacflow.CapSetUID}},
				},
				{Path: "/usr/bin", Objects: nil},
			},
		},
	}}
	tbl := builder.Build(pol, map[string]bool{"user1": true}, nil)
	Apply(pol, tbl)

	perm, ok := tbl.Perms[builder.RSOKey{Role: "user1", Subject: "/usr/bin", Object: "/etc/passwd"}]
	require.True(t, ok)
	require.Equal(t, "r", perm)
	require.True(t, tbl.RoleSubjectEffCaps[builder.RSKey{Role: "user1", Subject: "/usr/bin"}].SetUID)
}

func TestApply_OverrideSkipsInheritance(t *testing.T) {
	pol := &policy.Policy{Roles: []policy.Role{
		{
			Name: "user1",
			Subjects: []policy.Subject{
				{Path: "/usr", Objects: []policy.Object{{Path: "/etc/passwd", Permission: "r"}}},
				{Path: "/usr/bin", Mode: policy.Mode{Override: true}},
			},
		},
	}}
	tbl := builder.Build(pol, map[string]bool{"user1": true}, nil)
	Apply(pol, tbl)

	_, ok := tbl.Perms[builder.RSOKey{Role: "user1", Subject: "/usr/bin", Object: "/etc/passwd"}]
	require.False(t, ok)
}

func TestApply_ChildEntryWins(t *testing.T) {
	pol := &policy.Policy{Roles: []policy.Role{
		{
			Name: "user1",
			Subjects: []policy.Subject{
				{Path: "/usr", Objects: []policy.Object{{Path: "/etc/passwd", Permission: "r"}}},
				{Path: "/usr/bin", Objects: []policy.Object{{Path: "/etc/passwd", Permission: "rw"}}},
			},
		},
	}}
	tbl := builder.Build(pol, map[string]bool{"user1": true}, nil)
	Apply(pol, tbl)

	perm := tbl.Perms[builder.RSOKey{Role: "user1", Subject: "/usr/bin", Object: "/etc/passwd"}]
	require.Equal(t, "rw", perm)
}
