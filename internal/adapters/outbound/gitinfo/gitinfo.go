package gitinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Reader implements domain.CommitInfo using go-git.
type Reader struct{}

func New() *Reader {
	return &Reader{}
}

// CommitHash returns the HEAD commit of the repository containing path.
// path may be any directory inside the work tree.
func (g *Reader) CommitHash(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}

	return head.Hash().String(), nil
}
