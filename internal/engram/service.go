package engram

import (
	"context"
	"errors"
	"fmt"

	"github.com/engram-notes/engram-backend/internal/store"
)

// Service implements the synchronization layer over a store.Provider:
// repository resolution, directory listing, reads, guarded writes and
// atomic multi-delete. It holds no note state of its own; the remote
// store is the system of record and every operation reflects the latest
// committed state.
type Service struct {
	provider store.Provider
	repos    *RepoCache
}

// NewService creates a Service with a fresh repository cache.
func NewService(provider store.Provider) *Service {
	return &Service{provider: provider, repos: NewRepoCache()}
}

// resolve returns the user's store together with their repository,
// resolving and caching the repository on first use.
func (s *Service) resolve(ctx context.Context, userID string) (store.Store, store.Repo, error) {
	st, err := s.provider.GetStore(ctx, userID)
	if err != nil {
		return nil, store.Repo{}, fmt.Errorf("failed to get store: %w", err)
	}

	if repo, ok := s.repos.Get(userID); ok {
		return st, repo, nil
	}

	repo, err := st.FirstRepository(ctx)
	if err != nil {
		return nil, store.Repo{}, err
	}
	s.repos.Put(userID, repo)
	return st, repo, nil
}

// Forget drops the user's cached repository resolution (logout).
func (s *Service) Forget(userID string) {
	s.repos.Invalidate(userID)
}

// listDirectory walks commit -> root tree -> engram subtree and returns
// the conforming entries. The walk yields blob shas usable for subsequent
// reads, which the contents convenience endpoint does not reliably provide
// at scale. ErrDirectoryNotFound signals the normal first-use state.
func (s *Service) listDirectory(ctx context.Context, st store.Store, repo store.Repo) ([]Ref, error) {
	tip, err := st.LatestCommit(ctx, repo, Branch)
	if err != nil {
		// A missing ref, or the conflict an empty repository reports on
		// ref lookup, both mean no commit exists yet.
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%s: %w", repo, store.ErrDirectoryNotFound)
		}
		return nil, err
	}

	root, err := st.GetTree(ctx, repo, tip.TreeSHA)
	if err != nil {
		return nil, err
	}

	var dirSHA string
	for _, e := range root {
		if e.Path == Dir && e.Type == store.TypeTree && e.SHA != nil {
			dirSHA = *e.SHA
			break
		}
	}
	if dirSHA == "" {
		return nil, fmt.Errorf("%s: %w", repo, store.ErrDirectoryNotFound)
	}

	sub, err := st.GetTree(ctx, repo, dirSHA)
	if err != nil {
		return nil, err
	}

	refs := make([]Ref, 0, len(sub))
	for _, e := range sub {
		if e.Type != store.TypeBlob || e.SHA == nil {
			continue
		}
		title, ok := titleOf(e.Path)
		if !ok {
			continue
		}
		refs = append(refs, Ref{Title: title, SHA: *e.SHA})
	}
	return refs, nil
}

// List returns the current directory listing. Order is store-defined.
func (s *Service) List(ctx context.Context, userID string) ([]Ref, error) {
	st, repo, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.listDirectory(ctx, st, repo)
}

// ReadAll expands the directory into full notes. When the store supports
// batched blob listing the whole read is one round trip; otherwise it
// falls back to one contents call per entry. A failure anywhere aborts
// the read; no partial result is returned.
func (s *Service) ReadAll(ctx context.Context, userID string) ([]Note, error) {
	st, repo, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if bl, ok := st.(store.BlobLister); ok {
		entries, err := bl.ListBlobs(ctx, repo, Branch, Dir)
		if err != nil {
			return nil, err
		}
		notes := make([]Note, 0, len(entries))
		for _, e := range entries {
			title, ok := titleOf(e.Name)
			if !ok {
				continue
			}
			notes = append(notes, Note{Title: title, Content: e.Content, SHA: e.SHA})
		}
		return notes, nil
	}

	refs, err := s.listDirectory(ctx, st, repo)
	if err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(refs))
	for _, r := range refs {
		f, err := st.GetFile(ctx, repo, notePath(r.Title))
		if err != nil {
			return nil, err
		}
		notes = append(notes, Note{Title: r.Title, Content: f.Content, SHA: f.SHA})
	}
	return notes, nil
}

// Save writes one note. Overwrites are guarded by the blob sha fetched
// just before the write; a mismatch fails with ErrConflict and is never
// retried here — the caller re-reads and tries again with the fresh sha.
// A write that creates the directory itself commits as "init".
func (s *Service) Save(ctx context.Context, userID, title string, content []byte, isNew bool) (string, error) {
	st, repo, err := s.resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	path := notePath(title)
	if !isNew {
		f, err := st.GetFile(ctx, repo, path)
		switch {
		case err == nil:
			return st.UpdateFile(ctx, repo, path, content, autoSaveMessage, f.SHA)
		case errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDirectoryNotFound):
			// The note (or the whole directory) is gone; fall through and
			// create it fresh.
		default:
			return "", err
		}
	}

	message := autoSaveMessage
	if _, err := s.listDirectory(ctx, st, repo); err != nil {
		if !errors.Is(err, store.ErrDirectoryNotFound) {
			return "", err
		}
		message = initMessage
	}
	return st.CreateFile(ctx, repo, path, content, message)
}

// EnsureDirectory bootstraps the engram directory by writing the default
// note, once per identity-repository pair. Reports whether it wrote
// anything; finding the directory already present is the common case.
func (s *Service) EnsureDirectory(ctx context.Context, userID string) (bool, error) {
	st, repo, err := s.resolve(ctx, userID)
	if err != nil {
		return false, err
	}

	_, err = s.listDirectory(ctx, st, repo)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrDirectoryNotFound) {
		return false, err
	}

	_, err = st.CreateFile(ctx, repo, notePath(DefaultTitle), []byte(DefaultContent), initMessage)
	if err != nil {
		// Another request bootstrapped between the listing and the write.
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the given titles in exactly one commit: tree delta with
// nil shas, commit on the current tip, force ref update. Only the final
// step mutates branch state, so a failure earlier leaves the ref
// untouched. If another writer advances the tip in between, the force
// update wins silently — an accepted single-user limitation, not retried.
func (s *Service) Delete(ctx context.Context, userID string, titles []string, message string) error {
	if len(titles) == 0 {
		return nil
	}

	st, repo, err := s.resolve(ctx, userID)
	if err != nil {
		return err
	}

	tip, err := st.LatestCommit(ctx, repo, Branch)
	if err != nil {
		return err
	}

	entries := make([]store.TreeEntry, 0, len(titles))
	for _, title := range titles {
		entries = append(entries, store.TreeEntry{
			Path: notePath(title),
			Mode: store.ModeFile,
			Type: store.TypeBlob,
			SHA:  nil,
		})
	}

	treeSHA, err := st.CreateTree(ctx, repo, tip.TreeSHA, entries)
	if err != nil {
		return err
	}

	commitSHA, err := st.CreateCommit(ctx, repo, message, treeSHA, []string{tip.SHA})
	if err != nil {
		return err
	}

	return st.UpdateRef(ctx, repo, "refs/heads/"+Branch, commitSHA, true)
}

// CurrentSHA reports the blob sha the directory currently holds for a
// title, letting clients check a note's freshness before editing.
func (s *Service) CurrentSHA(ctx context.Context, userID, title string) (string, error) {
	refs, err := s.List(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, r := range refs {
		if r.Title == title {
			return r.SHA, nil
		}
	}
	return "", fmt.Errorf("%s: %w", title, store.ErrNotFound)
}
