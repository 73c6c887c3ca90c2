package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/engram-notes/engram-backend/internal/store"
)

var testRepo = store.Repo{Owner: "demo", Name: "engrams"}

func TestFirstRepository(t *testing.T) {
	s := NewStore(testRepo)

	repo, err := s.FirstRepository(context.Background())
	if err != nil {
		t.Fatalf("FirstRepository failed: %v", err)
	}
	if repo != testRepo {
		t.Errorf("Expected %v, got %v", testRepo, repo)
	}
}

func TestFirstRepository_None(t *testing.T) {
	s := NewStore(store.Repo{})

	_, err := s.FirstRepository(context.Background())
	if !errors.Is(err, store.ErrNoRepository) {
		t.Errorf("Expected ErrNoRepository, got %v", err)
	}
}

func TestCreateAndGetFile(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	sha, err := s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("hello"), "init")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	f, err := s.GetFile(ctx, testRepo, "engrams/a.engram")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if string(f.Content) != "hello" {
		t.Errorf("Expected content 'hello', got %q", f.Content)
	}
	if f.SHA != sha {
		t.Errorf("Expected sha %s, got %s", sha, f.SHA)
	}
}

func TestCreateFile_Exists(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	if _, err := s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("v1"), "init"); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	_, err := s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("v2"), "again")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
}

func TestGetFile_NotFound(t *testing.T) {
	s := NewStore(testRepo)

	_, err := s.GetFile(context.Background(), testRepo, "engrams/ghost.engram")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateFile_SHAMatch(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	sha, _ := s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("v1"), "init")

	newSHA, err := s.UpdateFile(ctx, testRepo, "engrams/a.engram", []byte("v2"), "auto save", sha)
	if err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if newSHA == sha {
		t.Error("Expected blob sha to change after update")
	}

	f, _ := s.GetFile(ctx, testRepo, "engrams/a.engram")
	if string(f.Content) != "v2" {
		t.Errorf("Expected content 'v2', got %q", f.Content)
	}
}

func TestUpdateFile_StaleSHA(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	stale, _ := s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("v1"), "init")
	if _, err := s.UpdateFile(ctx, testRepo, "engrams/a.engram", []byte("v2"), "auto save", stale); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}

	// A writer holding the pre-overwrite sha must lose.
	_, err := s.UpdateFile(ctx, testRepo, "engrams/a.engram", []byte("v3"), "auto save", stale)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	f, _ := s.GetFile(ctx, testRepo, "engrams/a.engram")
	if string(f.Content) != "v2" {
		t.Errorf("Expected surviving content 'v2', got %q", f.Content)
	}
}

func TestIdenticalContentSharesBlobSHA(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	sha1, _ := s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("same"), "init")
	sha2, _ := s.CreateFile(ctx, testRepo, "engrams/b.engram", []byte("same"), "auto save")
	if sha1 != sha2 {
		t.Errorf("Expected identical content to hash to one blob, got %s vs %s", sha1, sha2)
	}
}

func TestLatestCommit_NoRef(t *testing.T) {
	s := NewStore(testRepo)

	_, err := s.LatestCommit(context.Background(), testRepo, "main")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTreeWalk(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("a"), "init")
	s.CreateFile(ctx, testRepo, "engrams/b.engram", []byte("b"), "auto save")

	tip, err := s.LatestCommit(ctx, testRepo, "main")
	if err != nil {
		t.Fatalf("LatestCommit failed: %v", err)
	}

	root, err := s.GetTree(ctx, testRepo, tip.TreeSHA)
	if err != nil {
		t.Fatalf("GetTree failed: %v", err)
	}
	if len(root) != 1 || root[0].Path != "engrams" || root[0].Type != store.TypeTree {
		t.Fatalf("Unexpected root tree: %+v", root)
	}

	sub, err := s.GetTree(ctx, testRepo, *root[0].SHA)
	if err != nil {
		t.Fatalf("GetTree failed: %v", err)
	}
	if len(sub) != 2 || sub[0].Path != "a.engram" || sub[1].Path != "b.engram" {
		t.Errorf("Unexpected subtree: %+v", sub)
	}
}

func TestCreateTree_DeleteEntries(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("a"), "init")
	s.CreateFile(ctx, testRepo, "engrams/b.engram", []byte("b"), "auto save")
	tip, _ := s.LatestCommit(ctx, testRepo, "main")

	treeSHA, err := s.CreateTree(ctx, testRepo, tip.TreeSHA, []store.TreeEntry{
		{Path: "engrams/a.engram", Mode: store.ModeFile, Type: store.TypeBlob, SHA: nil},
	})
	if err != nil {
		t.Fatalf("CreateTree failed: %v", err)
	}

	commitSHA, err := s.CreateCommit(ctx, testRepo, "delete", treeSHA, []string{tip.SHA})
	if err != nil {
		t.Fatalf("CreateCommit failed: %v", err)
	}
	if err := s.UpdateRef(ctx, testRepo, "refs/heads/main", commitSHA, true); err != nil {
		t.Fatalf("UpdateRef failed: %v", err)
	}

	if _, err := s.GetFile(ctx, testRepo, "engrams/a.engram"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected a.engram gone, got %v", err)
	}
	if _, err := s.GetFile(ctx, testRepo, "engrams/b.engram"); err != nil {
		t.Errorf("Expected b.engram to survive: %v", err)
	}
}

func TestCreateTree_DeleteMissingPath(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("a"), "init")
	tip, _ := s.LatestCommit(ctx, testRepo, "main")

	_, err := s.CreateTree(ctx, testRepo, tip.TreeSHA, []store.TreeEntry{
		{Path: "engrams/ghost.engram", Mode: store.ModeFile, Type: store.TypeBlob, SHA: nil},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRef_NonFastForward(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("a"), "init")
	old, _ := s.LatestCommit(ctx, testRepo, "main")
	s.CreateFile(ctx, testRepo, "engrams/b.engram", []byte("b"), "auto save")

	// A commit parented on the stale tip cannot advance the ref without force.
	orphan, err := s.CreateCommit(ctx, testRepo, "stale", old.TreeSHA, []string{old.SHA})
	if err != nil {
		t.Fatalf("CreateCommit failed: %v", err)
	}
	err = s.UpdateRef(ctx, testRepo, "refs/heads/main", orphan, false)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}

	if err := s.UpdateRef(ctx, testRepo, "refs/heads/main", orphan, true); err != nil {
		t.Errorf("Expected forced update to succeed: %v", err)
	}
}

func TestListBlobs(t *testing.T) {
	s := NewStore(testRepo)
	ctx := context.Background()

	s.CreateFile(ctx, testRepo, "engrams/a.engram", []byte("alpha"), "init")
	s.CreateFile(ctx, testRepo, "engrams/b.engram", []byte("beta"), "auto save")
	s.CreateFile(ctx, testRepo, "README.md", []byte("docs"), "auto save")

	entries, err := s.ListBlobs(ctx, testRepo, "main", "engrams")
	if err != nil {
		t.Fatalf("ListBlobs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "a.engram" || string(entries[0].Content) != "alpha" || entries[0].SHA == "" {
		t.Errorf("Unexpected entry: %+v", entries[0])
	}
}

func TestListBlobs_MissingDirectory(t *testing.T) {
	s := NewStore(testRepo)

	_, err := s.ListBlobs(context.Background(), testRepo, "main", "engrams")
	if !errors.Is(err, store.ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound, got %v", err)
	}
}
