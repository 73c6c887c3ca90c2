package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"

	"github.com/engram-notes/engram-backend/internal/store"
)

// Client implements store.Store against the GitHub API. The REST client
// covers the plumbing endpoints (contents, git data, refs); the GraphQL
// client serves the batched directory read. Both share one authenticated
// http.Client carrying the user's OAuth token.
type Client struct {
	rest    *gh.Client
	graphql *githubv4.Client
}

// NewClient creates a Client. httpClient must already be authenticated
// with the user's credential.
func NewClient(httpClient *http.Client) *Client {
	return &Client{
		rest:    gh.NewClient(httpClient),
		graphql: githubv4.NewClient(httpClient),
	}
}

// FirstRepository selects the first repository of the credential's first
// app installation. Deliberately naive: the product assumes exactly one
// managed repository per user.
func (c *Client) FirstRepository(ctx context.Context) (store.Repo, error) {
	installations, _, err := c.rest.Apps.ListUserInstallations(ctx, nil)
	if err != nil {
		return store.Repo{}, wrap("list installations", err)
	}
	if len(installations) == 0 {
		return store.Repo{}, fmt.Errorf("list installations: %w", store.ErrNoRepository)
	}

	repos, _, err := c.rest.Apps.ListUserRepos(ctx, installations[0].GetID(), nil)
	if err != nil {
		return store.Repo{}, wrap("list installation repositories", err)
	}
	if len(repos.Repositories) == 0 {
		return store.Repo{}, fmt.Errorf("list installation repositories: %w", store.ErrNoRepository)
	}

	r := repos.Repositories[0]
	return store.Repo{Owner: r.GetOwner().GetLogin(), Name: r.GetName()}, nil
}

// GetFile fetches one file through the contents endpoint.
func (c *Client) GetFile(ctx context.Context, repo store.Repo, path string) (*store.File, error) {
	fc, _, _, err := c.rest.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, nil)
	if err != nil {
		return nil, wrap("get contents", err)
	}
	if fc == nil {
		// The path resolved to a directory listing, not a file.
		return nil, fmt.Errorf("get contents %q: %w", path, store.ErrNotFound)
	}

	decoded, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode contents %q: %w", path, err)
	}

	return &store.File{
		Path:    path,
		Content: []byte(decoded),
		SHA:     fc.GetSHA(),
	}, nil
}

// CreateFile creates a file that must not yet exist.
func (c *Client) CreateFile(ctx context.Context, repo store.Repo, path string, content []byte, message string) (string, error) {
	resp, _, err := c.rest.Repositories.CreateFile(ctx, repo.Owner, repo.Name, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
	})
	if err != nil {
		return "", wrap("create file", err)
	}
	return resp.Content.GetSHA(), nil
}

// UpdateFile overwrites path, guarded by the last observed blob sha.
func (c *Client) UpdateFile(ctx context.Context, repo store.Repo, path string, content []byte, message, sha string) (string, error) {
	resp, _, err := c.rest.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
		SHA:     gh.String(sha),
	})
	if err != nil {
		return "", wrap("update file", err)
	}
	return resp.Content.GetSHA(), nil
}

// LatestCommit resolves the branch ref and fetches its commit object.
func (c *Client) LatestCommit(ctx context.Context, repo store.Repo, branch string) (*store.Commit, error) {
	ref, _, err := c.rest.Git.GetRef(ctx, repo.Owner, repo.Name, "heads/"+branch)
	if err != nil {
		return nil, wrap("get ref", err)
	}

	sha := ref.GetObject().GetSHA()
	commit, _, err := c.rest.Git.GetCommit(ctx, repo.Owner, repo.Name, sha)
	if err != nil {
		return nil, wrap("get commit", err)
	}

	parents := make([]string, 0, len(commit.Parents))
	for _, p := range commit.Parents {
		parents = append(parents, p.GetSHA())
	}

	return &store.Commit{
		SHA:     sha,
		TreeSHA: commit.GetTree().GetSHA(),
		Parents: parents,
		Message: commit.GetMessage(),
	}, nil
}

// GetTree lists a tree object's direct entries.
func (c *Client) GetTree(ctx context.Context, repo store.Repo, treeSHA string) ([]store.TreeEntry, error) {
	tree, _, err := c.rest.Git.GetTree(ctx, repo.Owner, repo.Name, treeSHA, false)
	if err != nil {
		return nil, wrap("get tree", err)
	}

	entries := make([]store.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, store.TreeEntry{
			Path: e.GetPath(),
			Mode: e.GetMode(),
			Type: e.GetType(),
			SHA:  e.SHA,
		})
	}
	return entries, nil
}

// CreateTree builds a tree from a base tree plus delta entries. Entries
// with a nil sha delete their path; go-github serializes those as an
// explicit JSON null, which is how the tree endpoint signals removal.
func (c *Client) CreateTree(ctx context.Context, repo store.Repo, baseTreeSHA string, entries []store.TreeEntry) (string, error) {
	ghEntries := make([]*gh.TreeEntry, 0, len(entries))
	for _, e := range entries {
		ghEntries = append(ghEntries, &gh.TreeEntry{
			Path: gh.String(e.Path),
			Mode: gh.String(e.Mode),
			Type: gh.String(e.Type),
			SHA:  e.SHA,
		})
	}

	tree, _, err := c.rest.Git.CreateTree(ctx, repo.Owner, repo.Name, baseTreeSHA, ghEntries)
	if err != nil {
		return "", wrap("create tree", err)
	}
	return tree.GetSHA(), nil
}

// CreateCommit creates a commit object without moving any ref.
func (c *Client) CreateCommit(ctx context.Context, repo store.Repo, message, treeSHA string, parents []string) (string, error) {
	ghParents := make([]*gh.Commit, 0, len(parents))
	for _, p := range parents {
		ghParents = append(ghParents, &gh.Commit{SHA: gh.String(p)})
	}

	commit, _, err := c.rest.Git.CreateCommit(ctx, repo.Owner, repo.Name, &gh.Commit{
		Message: gh.String(message),
		Tree:    &gh.Tree{SHA: gh.String(treeSHA)},
		Parents: ghParents,
	}, nil)
	if err != nil {
		return "", wrap("create commit", err)
	}
	return commit.GetSHA(), nil
}

// UpdateRef points ref (e.g. "refs/heads/main") at commitSHA.
func (c *Client) UpdateRef(ctx context.Context, repo store.Repo, ref, commitSHA string, force bool) error {
	_, _, err := c.rest.Git.UpdateRef(ctx, repo.Owner, repo.Name, &gh.Reference{
		Ref:    gh.String(ref),
		Object: &gh.GitObject{SHA: gh.String(commitSHA)},
	}, force)
	if err != nil {
		return wrap("update ref", err)
	}
	return nil
}

// ListBlobs implements store.BlobLister with one GraphQL query: the
// directory subtree and every blob's text in a single round trip, instead
// of one contents request per file.
func (c *Client) ListBlobs(ctx context.Context, repo store.Repo, branch, dir string) ([]store.BlobEntry, error) {
	var q struct {
		Repository struct {
			Object *struct {
				Tree struct {
					Entries []struct {
						Name   string
						Oid    githubv4.GitObjectID
						Type   string
						Object struct {
							Blob struct {
								Text     *string
								IsBinary bool
							} `graphql:"... on Blob"`
						}
					}
				} `graphql:"... on Tree"`
			} `graphql:"object(expression: $expr)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	variables := map[string]interface{}{
		"owner": githubv4.String(repo.Owner),
		"name":  githubv4.String(repo.Name),
		"expr":  githubv4.String(branch + ":" + dir),
	}

	if err := c.graphql.Query(ctx, &q, variables); err != nil {
		return nil, wrap("list blobs", err)
	}
	if q.Repository.Object == nil {
		return nil, fmt.Errorf("list blobs %q: %w", dir, store.ErrDirectoryNotFound)
	}

	entries := make([]store.BlobEntry, 0, len(q.Repository.Object.Tree.Entries))
	for _, e := range q.Repository.Object.Tree.Entries {
		if e.Type != store.TypeBlob {
			continue
		}
		var content []byte
		if e.Object.Blob.Text != nil {
			content = []byte(*e.Object.Blob.Text)
		} else if e.Object.Blob.IsBinary {
			// GraphQL omits binary blob text; fall back to one contents call.
			f, err := c.GetFile(ctx, repo, dir+"/"+e.Name)
			if err != nil {
				return nil, err
			}
			content = f.Content
		}
		entries = append(entries, store.BlobEntry{
			Name:    e.Name,
			SHA:     string(e.Oid),
			Content: content,
		})
	}
	return entries, nil
}

// wrap translates go-github errors into the store taxonomy and attaches
// the failed operation.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, translate(err))
}

func translate(err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &store.RateLimitError{Reset: rateErr.Rate.Reset.Time}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		reset := time.Time{}
		if abuseErr.RetryAfter != nil {
			reset = time.Now().Add(*abuseErr.RetryAfter)
		}
		return &store.RateLimitError{Reset: reset}
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", store.ErrAuth, respErr.Message)
		case http.StatusNotFound:
			return store.ErrNotFound
		case http.StatusConflict:
			return store.ErrConflict
		case http.StatusUnprocessableEntity:
			// The contents endpoint reports a sha mismatch (and a create
			// against an existing path) as 422 rather than 409.
			if strings.Contains(respErr.Message, "sha") || strings.Contains(respErr.Message, "exists") {
				return store.ErrConflict
			}
		}
	}
	return err
}
