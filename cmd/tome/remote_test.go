package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		url   string
		owner string
		repo  string
	}{
		{"git@github.com:acme/widgets.git", "acme", "widgets"},
		{"git@github.com:acme/widgets", "acme", "widgets"},
		{"https://github.com/acme/widgets.git", "acme", "widgets"},
		{"https://github.com/acme/widgets/", "acme", "widgets"},
		{"ssh://git@github.example.com/acme/widgets.git", "acme", "widgets"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			owner, repo, err := parseRemoteURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestParseRemoteURLInvalid(t *testing.T) {
	for _, url := range []string{
		"",
		"/srv/git/widgets.git",
		"https://github.com",
		"https://github.com/acme",
		"git@github.com:acme/team/widgets.git",
	} {
		_, _, err := parseRemoteURL(url)
		assert.Error(t, err, url)
	}
}
