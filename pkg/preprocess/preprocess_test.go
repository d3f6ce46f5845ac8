package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRun_CommentsAndBraces(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "policy.conf", "role admin sA { # a comment\n\tsubject / { # more\n\t\t/ rwxcd\n\t}\n}\n")

	out, err := Run(p)
	require.NoError(t, err)
	require.NotContains(t, out, "{")
	require.NotContains(t, out, "}")
	require.NotContains(t, out, "#")
}

func TestRun_Include(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roles.conf", "role user1 u\nsubject /\n\t/ r\n")
	root := writeFile(t, dir, "policy.conf", "include roles.conf\n")

	out, err := Run(root)
	require.NoError(t, err)
	require.Contains(t, out, "role user1 u")
}

func TestRun_IncludeMissingIsIOError(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "policy.conf", "include nope.conf\n")

	_, err := Run(root)
	require.Error(t, err)
}

func TestRun_ReplaceAndDefine(t *testing.T) {
	dir := t.TempDir()
	content := "replace HOME /home/alice\n" +
		"define MYSUBJ {\n\tsubject $(HOME)\n\t\t/ r\n}\n" +
		"role user1 u\n$MYSUBJ\n"
	p := writeFile(t, dir, "policy.conf", content)

	out, err := Run(p)
	require.NoError(t, err)
	require.NotContains(t, out, "$(HOME)")
	require.NotContains(t, out, "$MYSUBJ")
	require.Contains(t, out, "/home/alice")
}

func TestRun_ReservedWordRewrite(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "policy.conf", "connect 1.2.3.4:80 s\nbind 0.0.0.0:8080 s\n")

	out, err := Run(p)
	require.NoError(t, err)
	require.Contains(t, out, "connect_reserved")
	require.Contains(t, out, "bind_reserved")
}

func TestRun_RoleAllowIPDropped(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "policy.conf", "role_allow_ip 10.0.0.0/8\nrole user1 u\n")

	out, err := Run(p)
	require.NoError(t, err)
	require.NotContains(t, out, "role_allow_ip")
	require.Contains(t, out, "role user1 u")
}

func TestRun_DirectoryIncludeIsStableOrder(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "d")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "b.conf", "role b u\n")
	writeFile(t, sub, "a.conf", "role a u\n")
	root := writeFile(t, dir, "policy.conf", "include d\n")

	out1, err := Run(root)
	require.NoError(t, err)
	out2, err := Run(root)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
	require.True(t, indexOf(out1, "role a u") < indexOf(out1, "role b u"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
