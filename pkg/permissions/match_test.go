package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		target  string
		want    bool
	}{
		{"wildcard matches child", "/a/b/*", "/a/b/c", true},
		{"wildcard matches subtree root", "/a/b/*", "/a/b", true},
		{"wildcard matches deep descendant", "/a/b/*", "/a/b/c/d/e", true},
		{"wildcard rejects sibling", "/a/b/*", "/a/x", false},
		{"exact matches itself", "/a/b", "/a/b", true},
		{"exact rejects descendant", "/a/b", "/a/b/c", false},
		{"exact rejects parent", "/a/b/c", "/a/b", false},
		{"interior wildcard behaves as stripped prefix", "/a/*/c", "/a/c/d", true},
		{"interior wildcard rejects unstripped shape", "/a/*/c", "/a/b/c", false},
		{"bare wildcard matches everything", "*", "/anything/at/all", true},
		{"wildcard rejects unrelated path", "/api/users/*", "/billing", false},
		{"api wildcard matches api child", "/api/*", "/api/users", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.pattern, tt.target))
		})
	}
}

func TestMatchesPrefix(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		prefix  string
		want    bool
	}{
		{"grant covering the subtree root", "/api/*", "/api/users", true},
		{"grant inside the subtree", "/api/users/1", "/api", true},
		{"exact grant at the subtree root", "/api", "/api", true},
		{"grant outside the subtree", "/billing", "/api", false},
		{"wildcard grant outside the subtree", "/billing/*", "/api", false},
		{"wildcard prefix argument", "/api/users/1", "/api/*", true},
		{"global grant covers any subtree", "*", "/api", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesPrefix(tt.pattern, tt.prefix))
		})
	}
}
