// Package whitelist implements suffix matching of query names against an
// allow-list of domains.
//
// Entries are inserted label by label starting from the top-level label, so
// "mail.example.com" and "www.example.com" share the "com" → "example" path.
// An entry whose leading label is "*" exempts every name strictly below the
// remaining suffix, but not the suffix itself.
package whitelist

import (
	"fmt"
	"strings"

	"github.com/velemoonkon/tunnelhunt/pkg/config"
)

// Wildcard is the leading label that turns an entry into a subtree exemption
const Wildcard = "*"

// ErrEmptyWhitelist is returned when whitelisting is requested with no entries
var ErrEmptyWhitelist = fmt.Errorf("%w: whitelist is empty, add domains or disable whitelisting", config.ErrConfiguration)

type node struct {
	children map[string]*node
	terminal bool
	wildcard bool
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Trie is an immutable domain suffix tree. It is safe for concurrent reads.
type Trie struct {
	root    *node
	entries int
}

// Build constructs a trie from domain entries in order
func Build(entries []string) (*Trie, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyWhitelist
	}

	t := &Trie{root: newNode()}
	for _, entry := range entries {
		t.insert(entry)
	}
	return t, nil
}

func (t *Trie) insert(entry string) {
	labels := strings.Split(entry, ".")
	wildcard := labels[0] == Wildcard
	if wildcard {
		labels = labels[1:]
	}

	cur := t.root
	for i := len(labels) - 1; i >= 0; i-- {
		next, ok := cur.children[labels[i]]
		if !ok {
			next = newNode()
			cur.children[labels[i]] = next
		}
		cur = next
	}

	if wildcard {
		cur.wildcard = true
	} else {
		cur.terminal = true
	}
	t.entries++
}

// Query reports whether domain is covered by the whitelist. Matching is
// exact on label text: no case folding, no trailing dot handling.
func (t *Trie) Query(domain string) bool {
	if t == nil {
		return false
	}

	labels := strings.Split(domain, ".")
	cur := t.root
	for i := len(labels) - 1; i >= 0; i-- {
		if cur.wildcard {
			return true
		}
		next, ok := cur.children[labels[i]]
		if !ok {
			return false
		}
		cur = next
	}
	return cur.terminal
}

// Len returns the number of entries the trie was built from
func (t *Trie) Len() int {
	if t == nil {
		return 0
	}
	return t.entries
}
