package memory

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/engram-notes/engram-backend/internal/store"
)

type treeEntry struct {
	mode string
	typ  string
	sha  string
}

type treeObj map[string]treeEntry

type commitObj struct {
	tree    string
	parents []string
	message string
}

// Store implements store.Store (and store.BlobLister) on an in-memory git
// object graph: content-addressed blobs, trees, commits and mutable refs.
// Used by tests and by DEV_MODE instead of the GitHub API.
type Store struct {
	mu   sync.Mutex
	repo store.Repo

	blobs   map[string][]byte
	trees   map[string]treeObj
	commits map[string]commitObj
	refs    map[string]string

	// Failure injection for tests. When set, the corresponding operation
	// fails before touching any state.
	FailCreateTree   error
	FailCreateCommit error
	FailUpdateRef    error
}

// NewStore creates an empty repository (no commits yet). A zero repo makes
// FirstRepository fail with ErrNoRepository.
func NewStore(repo store.Repo) *Store {
	return &Store{
		repo:    repo,
		blobs:   make(map[string][]byte),
		trees:   make(map[string]treeObj),
		commits: make(map[string]commitObj),
		refs:    make(map[string]string),
	}
}

func (s *Store) FirstRepository(ctx context.Context) (store.Repo, error) {
	if s.repo == (store.Repo{}) {
		return store.Repo{}, store.ErrNoRepository
	}
	return s.repo, nil
}

// blobSHA matches git's blob hashing, so identical content has a stable id.
func blobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (s *Store) putBlob(content []byte) string {
	sha := blobSHA(content)
	s.blobs[sha] = append([]byte(nil), content...)
	return sha
}

func (s *Store) putTree(t treeObj) string {
	sha := uuid.NewString()
	s.trees[sha] = t
	return sha
}

// resolve walks the tree graph from treeSHA down the given path segments
// and returns the entry at the end.
func (s *Store) resolve(treeSHA string, segments []string) (treeEntry, bool) {
	t, ok := s.trees[treeSHA]
	if !ok {
		return treeEntry{}, false
	}
	e, ok := t[segments[0]]
	if !ok {
		return treeEntry{}, false
	}
	if len(segments) == 1 {
		return e, true
	}
	if e.typ != store.TypeTree {
		return treeEntry{}, false
	}
	return s.resolve(e.sha, segments[1:])
}

func (s *Store) tip(branch string) (string, commitObj, bool) {
	sha, ok := s.refs["refs/heads/"+branch]
	if !ok {
		return "", commitObj{}, false
	}
	return sha, s.commits[sha], true
}

func (s *Store) GetFile(ctx context.Context, repo store.Repo, path string) (*store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, tip, ok := s.tip("main")
	if !ok {
		return nil, fmt.Errorf("get contents %q: %w", path, store.ErrNotFound)
	}

	e, ok := s.resolve(tip.tree, strings.Split(path, "/"))
	if !ok || e.typ != store.TypeBlob {
		return nil, fmt.Errorf("get contents %q: %w", path, store.ErrNotFound)
	}

	return &store.File{
		Path:    path,
		Content: append([]byte(nil), s.blobs[e.sha]...),
		SHA:     e.sha,
	}, nil
}

// writeFile updates or creates path in a fresh tree graph, commits the
// result and advances main. Shared by CreateFile and UpdateFile.
func (s *Store) writeFile(path string, content []byte, message string) string {
	tipSHA, tip, hasTip := s.tip("main")

	baseTree := ""
	if hasTip {
		baseTree = tip.tree
	}

	blob := s.putBlob(content)
	newRoot := s.rebuild(baseTree, strings.Split(path, "/"), &treeEntry{mode: store.ModeFile, typ: store.TypeBlob, sha: blob})

	var parents []string
	if hasTip {
		parents = []string{tipSHA}
	}
	commitSHA := uuid.NewString()
	s.commits[commitSHA] = commitObj{tree: newRoot, parents: parents, message: message}
	s.refs["refs/heads/main"] = commitSHA
	return blob
}

// rebuild returns the sha of a copy of baseTree with the entry at the path
// segments replaced (or removed when entry is nil). Intermediate trees are
// created as needed.
func (s *Store) rebuild(baseTree string, segments []string, entry *treeEntry) string {
	t := make(treeObj)
	for k, v := range s.trees[baseTree] {
		t[k] = v
	}

	name := segments[0]
	if len(segments) == 1 {
		if entry == nil {
			delete(t, name)
		} else {
			t[name] = *entry
		}
	} else {
		childBase := ""
		if e, ok := t[name]; ok && e.typ == store.TypeTree {
			childBase = e.sha
		}
		childSHA := s.rebuild(childBase, segments[1:], entry)
		t[name] = treeEntry{mode: "040000", typ: store.TypeTree, sha: childSHA}
	}
	return s.putTree(t)
}

func (s *Store) CreateFile(ctx context.Context, repo store.Repo, path string, content []byte, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tip, ok := s.tip("main"); ok {
		if _, exists := s.resolve(tip.tree, strings.Split(path, "/")); exists {
			return "", fmt.Errorf("create file %q: %w", path, store.ErrConflict)
		}
	}
	return s.writeFile(path, content, message), nil
}

func (s *Store) UpdateFile(ctx context.Context, repo store.Repo, path string, content []byte, message, sha string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, tip, ok := s.tip("main")
	if !ok {
		return "", fmt.Errorf("update file %q: %w", path, store.ErrNotFound)
	}
	e, ok := s.resolve(tip.tree, strings.Split(path, "/"))
	if !ok {
		return "", fmt.Errorf("update file %q: %w", path, store.ErrNotFound)
	}
	if e.sha != sha {
		return "", fmt.Errorf("update file %q: %w", path, store.ErrConflict)
	}
	return s.writeFile(path, content, message), nil
}

func (s *Store) LatestCommit(ctx context.Context, repo store.Repo, branch string) (*store.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sha, tip, ok := s.tip(branch)
	if !ok {
		return nil, fmt.Errorf("get ref %q: %w", branch, store.ErrNotFound)
	}
	return &store.Commit{
		SHA:     sha,
		TreeSHA: tip.tree,
		Parents: append([]string(nil), tip.parents...),
		Message: tip.message,
	}, nil
}

func (s *Store) GetTree(ctx context.Context, repo store.Repo, treeSHA string) ([]store.TreeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trees[treeSHA]
	if !ok {
		return nil, fmt.Errorf("get tree %q: %w", treeSHA, store.ErrNotFound)
	}

	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]store.TreeEntry, 0, len(t))
	for _, name := range names {
		e := t[name]
		sha := e.sha
		entries = append(entries, store.TreeEntry{Path: name, Mode: e.mode, Type: e.typ, SHA: &sha})
	}
	return entries, nil
}

func (s *Store) CreateTree(ctx context.Context, repo store.Repo, baseTreeSHA string, entries []store.TreeEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateTree != nil {
		return "", s.FailCreateTree
	}
	if _, ok := s.trees[baseTreeSHA]; !ok {
		return "", fmt.Errorf("create tree: base %q: %w", baseTreeSHA, store.ErrNotFound)
	}

	root := baseTreeSHA
	for _, e := range entries {
		segments := strings.Split(e.Path, "/")
		if e.SHA == nil {
			if _, ok := s.resolve(root, segments); !ok {
				return "", fmt.Errorf("create tree: delete %q: %w", e.Path, store.ErrNotFound)
			}
			root = s.rebuild(root, segments, nil)
			continue
		}
		root = s.rebuild(root, segments, &treeEntry{mode: e.Mode, typ: e.Type, sha: *e.SHA})
	}
	return root, nil
}

func (s *Store) CreateCommit(ctx context.Context, repo store.Repo, message, treeSHA string, parents []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateCommit != nil {
		return "", s.FailCreateCommit
	}
	if _, ok := s.trees[treeSHA]; !ok {
		return "", fmt.Errorf("create commit: tree %q: %w", treeSHA, store.ErrNotFound)
	}

	sha := uuid.NewString()
	s.commits[sha] = commitObj{tree: treeSHA, parents: append([]string(nil), parents...), message: message}
	return sha, nil
}

func (s *Store) UpdateRef(ctx context.Context, repo store.Repo, ref, commitSHA string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdateRef != nil {
		return s.FailUpdateRef
	}
	commit, ok := s.commits[commitSHA]
	if !ok {
		return fmt.Errorf("update ref: commit %q: %w", commitSHA, store.ErrNotFound)
	}

	if current, exists := s.refs[ref]; exists && !force {
		fastForward := false
		for _, p := range commit.parents {
			if p == current {
				fastForward = true
			}
		}
		if !fastForward {
			return fmt.Errorf("update ref %q: non-fast-forward: %w", ref, store.ErrConflict)
		}
	}
	s.refs[ref] = commitSHA
	return nil
}

// ListBlobs implements store.BlobLister.
func (s *Store) ListBlobs(ctx context.Context, repo store.Repo, branch, dir string) ([]store.BlobEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, tip, ok := s.tip(branch)
	if !ok {
		return nil, fmt.Errorf("list blobs %q: %w", dir, store.ErrDirectoryNotFound)
	}
	e, ok := s.resolve(tip.tree, strings.Split(dir, "/"))
	if !ok || e.typ != store.TypeTree {
		return nil, fmt.Errorf("list blobs %q: %w", dir, store.ErrDirectoryNotFound)
	}

	t := s.trees[e.sha]
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]store.BlobEntry, 0, len(t))
	for _, name := range names {
		child := t[name]
		if child.typ != store.TypeBlob {
			continue
		}
		entries = append(entries, store.BlobEntry{
			Name:    name,
			SHA:     child.sha,
			Content: append([]byte(nil), s.blobs[child.sha]...),
		})
	}
	return entries, nil
}
