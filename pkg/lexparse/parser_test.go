package lexparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/rbacflow"
	"github.com/pthm/rbacflow/pkg/policy"
)

func TestParse_Empty(t *testing.T) {
	pol, err := Parse("")
	require.NoError(t, err)
	require.Empty(t, pol.Roles)
}

func TestParse_SimpleRoleSubjectObject(t *testing.T) {
	text := "role user1 u\n" +
		"subject /\n" +
		"\t/etc/shadow rh\n" +
		"\t+CAP_SETUID\n"

	pol, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, pol.Roles, 1)

	r := pol.Roles[0]
	require.Equal(t, "user1", r.Name)
	require.Equal(t, rbacflow.KindUser, r.Kind)
	require.Len(t, r.Subjects, 1)

	s := r.Subjects[0]
	require.Equal(t, "/", s.Path)
	require.Len(t, s.Objects, 1)
	require.Equal(t, "/etc/shadow", s.Objects[0].Path)
	require.Equal(t, "rh", s.Objects[0].Permission)
	require.Len(t, s.Capabilities, 1)
	require.True(t, s.Capabilities[0].Add)
	require.Equal(t, rbacflow.CapSetUID, s.Capabilities[0].Cap)
}

func TestParse_OverrideModeFlag(t *testing.T) {
	text := "role user1 u\nsubject /usr/bin o\n\t/bin/sh x\n"
	pol, err := Parse(text)
	require.NoError(t, err)
	require.True(t, pol.Roles[0].Subjects[0].Mode.Override)
}

func TestParse_NestedSubjectPathErrors(t *testing.T) {
	text := "role user1 u\nsubject /usr:/bin\n\t/ r\n"
	_, err := Parse(text)
	require.Error(t, err)
}

func TestParse_TransitionClauses(t *testing.T) {
	text := "role admin sA\n" +
		"subject /\n" +
		"\tuser_transition_allow user1 user2\n" +
		"\tgroup_transition_deny group1\n"

	pol, err := Parse(text)
	require.NoError(t, err)
	s := pol.Roles[0].Subjects[0]
	require.Equal(t, policy.PolicyAllow, s.UserTrans.Kind)
	require.ElementsMatch(t, []string{"user1", "user2"}, s.UserTrans.Roles)
	require.Equal(t, policy.PolicyDeny, s.GroupTrans.Kind)
	require.ElementsMatch(t, []string{"group1"}, s.GroupTrans.Roles)
}

func TestParse_RepeatedTransitionClauseLastWins(t *testing.T) {
	text := "role admin sA\n" +
		"subject /\n" +
		"\tuser_transition_allow user1\n" +
		"\tuser_transition_deny user2\n"

	pol, err := Parse(text)
	require.NoError(t, err)
	s := pol.Roles[0].Subjects[0]
	require.Equal(t, policy.PolicyDeny, s.UserTrans.Kind)
	require.ElementsMatch(t, []string{"user2"}, s.UserTrans.Roles)
}

func TestParseWithOptions_StrictRejectsRepeatedTransitionClause(t *testing.T) {
	text := "role admin sA\n" +
		"subject /\n" +
		"\tuser_transition_allow user1\n" +
		"\tuser_transition_deny user2\n"

	_, err := ParseWithOptions(text, Options{Strict: true})
	require.Error(t, err)
}

func TestParseWithOptions_StrictAllowsSingleTransitionClause(t *testing.T) {
	text := "role admin sA\n" +
		"subject /\n" +
		"\tuser_transition_allow user1\n" +
		"\tgroup_transition_deny group1\n"

	_, err := ParseWithOptions(text, Options{Strict: true})
	require.NoError(t, err)
}

func TestParse_DomainDeclaration(t *testing.T) {
	text := "domain alice bob u\nsubject /\n\t/ r\n"
	pol, err := Parse(text)
	require.NoError(t, err)
	require.True(t, pol.Roles[0].IsDomain())
	require.ElementsMatch(t, []string{"alice", "bob"}, pol.Roles[0].DomainUsers)
}

func TestParse_RoleTransitions(t *testing.T) {
	text := "role admin sA\nrole_transitions user1 user2\n"
	pol, err := Parse(text)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"user1", "user2"}, pol.Roles[0].Transitions)
	require.True(t, pol.Roles[0].Admin)
}

func TestParse_CapAllToggle(t *testing.T) {
	text := "role admin sA\nsubject /\n\t+CAP_ALL\n\t-CAP_SETGID\n"
	pol, err := Parse(text)
	require.NoError(t, err)
	deltas := pol.Roles[0].Subjects[0].Capabilities
	require.Len(t, deltas, 2)
	require.True(t, deltas[0].CapAll)
	require.False(t, deltas[1].Add)
	require.Equal(t, rbacflow.CapSetGID, deltas[1].Cap)
}
