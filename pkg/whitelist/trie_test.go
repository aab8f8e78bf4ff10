package whitelist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velemoonkon/tunnelhunt/pkg/config"
)

func TestQuery(t *testing.T) {
	trie, err := Build([]string{"example.com", "*.trusted.net"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		domain string
		want   bool
	}{
		{name: "Exact entry", domain: "example.com", want: true},
		{name: "Subdomain of exact entry", domain: "sub.example.com", want: false},
		{name: "Parent of exact entry", domain: "com", want: false},
		{name: "Wildcard child", domain: "anything.trusted.net", want: true},
		{name: "Wildcard grandchild", domain: "a.b.trusted.net", want: true},
		{name: "Wildcard apex", domain: "trusted.net", want: false},
		{name: "Unrelated domain", domain: "evil.org", want: false},
		{name: "Case is significant", domain: "EXAMPLE.com", want: false},
		{name: "Trailing dot is a label", domain: "example.com.", want: false},
		{name: "Empty string", domain: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trie.Query(tt.domain))
		})
	}
}

func TestBuild_SharedSuffixes(t *testing.T) {
	trie, err := Build([]string{"mail.example.com", "www.example.com", "example.com"})
	require.NoError(t, err)

	assert.Equal(t, 3, trie.Len())
	assert.Len(t, trie.root.children, 1, "all entries share the com label")
	assert.Len(t, trie.root.children["com"].children, 1)
	assert.Len(t, trie.root.children["com"].children["example"].children, 2)

	assert.True(t, trie.Query("mail.example.com"))
	assert.True(t, trie.Query("www.example.com"))
	assert.True(t, trie.Query("example.com"))
	assert.False(t, trie.Query("ftp.example.com"))
}

func TestBuild_WildcardAndApex(t *testing.T) {
	trie, err := Build([]string{"*.trusted.net", "trusted.net"})
	require.NoError(t, err)

	assert.True(t, trie.Query("trusted.net"))
	assert.True(t, trie.Query("x.trusted.net"))
}

func TestBuild_Empty(t *testing.T) {
	trie, err := Build(nil)
	assert.Nil(t, trie)
	assert.ErrorIs(t, err, ErrEmptyWhitelist)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}

func TestQuery_NilTrie(t *testing.T) {
	var trie *Trie
	assert.False(t, trie.Query("example.com"))
	assert.Equal(t, 0, trie.Len())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	content := "# trusted resolvers\n  example.com  \n\n*.trusted.net\nnot a domain..\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	trie, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, trie.Len())
	assert.True(t, trie.Query("example.com"))
	assert.True(t, trie.Query("cdn.trusted.net"))
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n# nothing here\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrConfiguration)
}
