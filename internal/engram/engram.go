// Package engram maps a flat collection of named text notes onto a remote
// git object store: one file per note under a dedicated directory, written
// and deleted through the store's plumbing primitives.
package engram

import "strings"

const (
	// Dir is the repository directory holding all engram files.
	Dir = "engrams"

	// Ext is the file extension of every engram.
	Ext = ".engram"

	// Branch is the branch every read and write goes through.
	Branch = "main"

	// DefaultTitle and DefaultContent make up the note written when the
	// directory is bootstrapped. The remote store has no empty-directory
	// concept, so the directory exists only by containing this file.
	DefaultTitle   = "sample"
	DefaultContent = "* Sample"

	initMessage     = "init"
	autoSaveMessage = "auto save"
)

// Note is one engram with its content and current blob sha. The sha is
// required for updates and absent for not-yet-created notes.
type Note struct {
	Title   string
	Content []byte
	SHA     string
}

// Ref names an engram in the directory listing without its content.
type Ref struct {
	Title string
	SHA   string
}

// notePath returns the repository path of a title's file.
func notePath(title string) string {
	return Dir + "/" + title + Ext
}

// titleOf derives the title from a directory entry name. ok is false for
// entries that do not carry the engram extension; those are ignored.
func titleOf(name string) (string, bool) {
	if !strings.HasSuffix(name, Ext) || len(name) == len(Ext) {
		return "", false
	}
	return strings.TrimSuffix(name, Ext), true
}
