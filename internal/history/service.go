// Package history keeps board snapshots in one git repository per board.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "board.json"

var (
	ErrVersionNotFound = errors.New("version not found")
	hashPattern        = regexp.MustCompile(`^[0-9a-f]{4,40}$`)
	boardIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Version is one saved snapshot.
type Version struct {
	Hash      string    `json:"hash"`
	ShortHash string    `json:"shortHash"`
	Label     string    `json:"label"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Snapshot commits content to the board's main branch. When content matches
// the current head nothing is committed and the head is returned with
// created=false.
func (s *Service) Snapshot(boardID string, content any, author, label string) (Version, bool, error) {
	if !boardIDPattern.MatchString(boardID) {
		return Version{}, false, fmt.Errorf("invalid board id %q", boardID)
	}
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return Version{}, false, fmt.Errorf("marshal snapshot: %w", err)
	}
	payload = append(payload, '\n')

	lock := s.boardLock(boardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(boardID)
	if err != nil {
		return Version{}, false, err
	}

	if head, err := headCommit(repo); err == nil {
		current, err := readSnapshot(head)
		if err == nil && bytes.Equal(current, payload) {
			return toVersion(head), false, nil
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Version{}, false, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Version{}, false, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), snapshotFile), payload, 0o644); err != nil {
		return Version{}, false, fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return Version{}, false, fmt.Errorf("git add snapshot: %w", err)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = "Snapshot " + s.now().UTC().Format("2006-01-02 15:04")
	}
	hash, err := worktree.Commit(label, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: sanitizeEmail(author) + "@users.journeymap.local",
			When:  s.now(),
		},
	})
	if err != nil {
		return Version{}, false, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Version{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toVersion(commitObj), true, nil
}

// List returns up to limit versions, newest first. Boards that were never
// snapshotted have no versions.
func (s *Service) List(boardID string, limit int) ([]Version, error) {
	lock := s.boardLock(boardID)
	lock.Lock()
	defer lock.Unlock()

	items := make([]Version, 0)
	repo, err := git.PlainOpen(s.repoPath(boardID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := headCommit(repo)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toVersion(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Get returns a version and its raw snapshot JSON. hash may be abbreviated.
func (s *Service) Get(boardID, hash string) (Version, []byte, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !hashPattern.MatchString(hash) {
		return Version{}, nil, ErrVersionNotFound
	}

	lock := s.boardLock(boardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(boardID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Version{}, nil, ErrVersionNotFound
	}
	if err != nil {
		return Version{}, nil, fmt.Errorf("open repo: %w", err)
	}
	commitObj, err := resolveCommit(repo, hash)
	if err != nil {
		return Version{}, nil, err
	}
	payload, err := readSnapshot(commitObj)
	if err != nil {
		return Version{}, nil, err
	}
	return toVersion(commitObj), payload, nil
}

// Remove deletes a board's history.
func (s *Service) Remove(boardID string) error {
	if !boardIDPattern.MatchString(boardID) {
		return nil
	}
	lock := s.boardLock(boardID)
	lock.Lock()
	defer lock.Unlock()
	if err := os.RemoveAll(s.repoPath(boardID)); err != nil {
		return fmt.Errorf("remove history: %w", err)
	}
	return nil
}

func (s *Service) repoPath(boardID string) string {
	return filepath.Join(s.baseDir, boardID)
}

func (s *Service) boardLock(boardID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[boardID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[boardID] = lock
	return lock
}

func (s *Service) openOrInit(boardID string) (*git.Repository, error) {
	path := s.repoPath(boardID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.Main, true)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, nil
}

func resolveCommit(repo *git.Repository, hash string) (*object.Commit, error) {
	var resolved plumbing.Hash
	if len(hash) == 40 {
		resolved = plumbing.NewHash(hash)
	} else {
		h, err := repo.ResolveRevision(plumbing.Revision(hash))
		if err != nil {
			return nil, ErrVersionNotFound
		}
		resolved = *h
	}
	commitObj, err := repo.CommitObject(resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return commitObj, nil
}

func readSnapshot(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func toVersion(commitObj *object.Commit) Version {
	full := commitObj.Hash.String()
	return Version{
		Hash:      full,
		ShortHash: full[:7],
		Label:     strings.TrimSpace(strings.SplitN(commitObj.Message, "\n", 2)[0]),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
