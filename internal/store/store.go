package store

import (
	"context"
)

// Repo identifies the repository backing a user's engrams.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// File is a single file fetched through the contents endpoint.
type File struct {
	Path    string
	Content []byte
	SHA     string
}

// TreeEntry is one entry of a git tree. When passed to CreateTree, a nil
// SHA requests deletion of Path relative to the base tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  *string
}

// Commit is a commit object with its root tree and parents.
type Commit struct {
	SHA     string
	TreeSHA string
	Parents []string
	Message string
}

// BlobEntry is a directory entry together with its blob content, as
// returned by a batched directory read.
type BlobEntry struct {
	Name    string
	SHA     string
	Content []byte
}

// Tree entry modes and types used when building tree deltas.
const (
	ModeFile = "100644"
	TypeBlob = "blob"
	TypeTree = "tree"
)

// Store is the plumbing contract against the remote object store. All
// methods fail with one of the sentinel errors from this package, a
// *RateLimitError, or a wrapped transport error.
type Store interface {
	// FirstRepository resolves the first repository visible to the
	// authenticated credential via its app installations. Fails with
	// ErrNoRepository when the credential can see none.
	FirstRepository(ctx context.Context) (Repo, error)

	// GetFile fetches a single file's content and blob sha.
	GetFile(ctx context.Context, repo Repo, path string) (*File, error)

	// CreateFile creates a file that must not already exist and returns
	// the new blob sha. Fails with ErrConflict if the path exists.
	CreateFile(ctx context.Context, repo Repo, path string, content []byte, message string) (string, error)

	// UpdateFile overwrites an existing file, guarded by the blob sha the
	// caller last observed. Fails with ErrConflict on sha mismatch.
	UpdateFile(ctx context.Context, repo Repo, path string, content []byte, message, sha string) (string, error)

	// LatestCommit resolves the tip commit of a branch.
	LatestCommit(ctx context.Context, repo Repo, branch string) (*Commit, error)

	// GetTree lists the entries of a tree object.
	GetTree(ctx context.Context, repo Repo, treeSHA string) ([]TreeEntry, error)

	// CreateTree builds a new tree from baseTreeSHA plus the given delta
	// entries and returns its sha.
	CreateTree(ctx context.Context, repo Repo, baseTreeSHA string, entries []TreeEntry) (string, error)

	// CreateCommit creates a commit pointing at treeSHA with the given
	// parents and returns its sha.
	CreateCommit(ctx context.Context, repo Repo, message, treeSHA string, parents []string) (string, error)

	// UpdateRef points ref at commitSHA. With force set, the remote may
	// discard commits the new tip does not contain.
	UpdateRef(ctx context.Context, repo Repo, ref, commitSHA string, force bool) error
}

// BlobLister is an optional Store capability: fetch a directory subtree and
// every blob's content in a single round trip. Callers should type-assert
// and fall back to per-file GetFile calls when the store does not offer it.
type BlobLister interface {
	ListBlobs(ctx context.Context, repo Repo, branch, dir string) ([]BlobEntry, error)
}

// Provider hands out a Store bound to a specific user's credential.
type Provider interface {
	GetStore(ctx context.Context, userID string) (Store, error)
}
