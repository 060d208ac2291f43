package main

import (
	"fmt"
	"os/exec"
	"strings"
)

// detectRemoteRepo reads owner/name from the origin remote of the git
// checkout in the working directory.
func detectRemoteRepo() (owner, repo string, err error) {
	output, err := exec.Command("git", "config", "--get", "remote.origin.url").Output()
	if err != nil {
		return "", "", fmt.Errorf("not a git repository or no remote configured: %w", err)
	}
	remoteURL := strings.TrimSpace(string(output))
	if remoteURL == "" {
		return "", "", fmt.Errorf("remote.origin.url is empty")
	}
	return parseRemoteURL(remoteURL)
}

// parseRemoteURL extracts owner and repository name from SSH
// (git@host:owner/repo.git, ssh://git@host/owner/repo) and HTTPS remotes.
func parseRemoteURL(url string) (owner, repo string, err error) {
	var path string
	switch {
	case strings.HasPrefix(url, "git@"):
		_, after, ok := strings.Cut(url, ":")
		if !ok {
			return "", "", fmt.Errorf("invalid SSH remote %q", url)
		}
		path = after
	case strings.HasPrefix(url, "ssh://"), strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
		rest := url[strings.Index(url, "://")+3:]
		_, after, ok := strings.Cut(rest, "/")
		if !ok {
			return "", "", fmt.Errorf("remote %q has no repository path", url)
		}
		path = after
	default:
		return "", "", fmt.Errorf("unsupported remote %q", url)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository path in remote %q", url)
	}
	return parts[0], parts[1], nil
}
