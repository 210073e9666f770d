package client

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/sftpbridge/pkg/remotefs"
)

// Client is the asynchronous facade over one remote filesystem
// connection.
//
// Every operation enqueues a pending request on the serializing
// executor and awaits its result; the caller's goroutine suspends at
// the await point while other goroutines keep running, and the actual
// remote round trip always happens on the executor's own goroutine.
//
// Cancelling the context abandons the wait only: an operation that has
// been dispatched still runs to completion on the remote side, and the
// connection-wide FIFO order is unaffected. The core imposes no
// per-operation timeouts; layer them with context.WithTimeout if
// needed.
type Client struct {
	exec *Executor

	// wd is the remote working directory the transport established
	// for this session. Session-scoped, never mutated.
	wd string
}

// Options configures a Client.
type Options struct {
	// WorkDir is the remote working directory reported by the
	// transport at session start. Relative paths are resolved against
	// it by the remote side.
	WorkDir string
}

// New creates a client owning conn. The handle must not be used
// directly afterwards; Close releases it.
func New(conn remotefs.Conn, opts Options) *Client {
	return &Client{
		exec: NewExecutor(conn),
		wd:   opts.WorkDir,
	}
}

// Close tears the connection down. Pending requests resolve with a
// ConnectionClosed error; the in-flight operation (if any) completes
// first. Idempotent.
func (c *Client) Close() error { return c.exec.Close() }

// CloseWithTimeout closes like Close but stops waiting after d and
// returns an error if the in-flight operation has not drained by then.
// Teardown keeps running in the background either way; d <= 0 means
// wait indefinitely.
func (c *Client) CloseWithTimeout(d time.Duration) error {
	if d <= 0 {
		return c.Close()
	}

	done := make(chan error, 1)
	go func() { done <- c.exec.Close() }()

	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return fmt.Errorf("close: in-flight operation did not drain within %s", d)
	}
}

// State returns the connection lifecycle state.
func (c *Client) State() State { return c.exec.State() }

// Stats returns a snapshot of the executor operation counters.
func (c *Client) Stats() Stats { return c.exec.Stats() }

// Getwd returns the session's remote working directory.
func (c *Client) Getwd() string { return c.wd }

// call enqueues one operation and awaits its typed result.
//
// The conversion and error translation both run on the executor
// goroutine so an abandoned request still resolves with a fully typed
// result.
func call[T any](ctx context.Context, c *Client, op, path string, fn func(remotefs.Conn) (T, error)) (T, error) {
	var zero T

	req := c.exec.submit(op, path, func(conn remotefs.Conn) (any, error) {
		value, err := fn(conn)
		if err != nil {
			return nil, remotefs.Translate(op, path, err)
		}
		return value, nil
	})

	select {
	case res := <-req.done:
		if res.err != nil {
			return zero, res.err
		}
		value, _ := res.value.(T)
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// ReadDir lists the direct members of the directory at path.
//
// Entries are returned in filesystem order; sort for determinism.
// Symlinked children report Type = FileTypeSymlink without resolution.
func (c *Client) ReadDir(ctx context.Context, path string) ([]remotefs.DirEntry, error) {
	return call(ctx, c, remotefs.OpReadDir, path, func(conn remotefs.Conn) ([]remotefs.DirEntry, error) {
		return conn.ReadDir(path)
	})
}

// Mkdir creates a single directory level with the given permission
// bits. Fails if the parent is missing or the path already exists.
func (c *Client) Mkdir(ctx context.Context, path string, perm os.FileMode) error {
	_, err := call(ctx, c, remotefs.OpMkdir, path, func(conn remotefs.Conn) (struct{}, error) {
		return struct{}{}, conn.Mkdir(path, perm)
	})
	return err
}

// Rmdir removes an empty directory. Fails if the path is missing, not
// a directory, or not empty.
func (c *Client) Rmdir(ctx context.Context, path string) error {
	_, err := call(ctx, c, remotefs.OpRmdir, path, func(conn remotefs.Conn) (struct{}, error) {
		return struct{}{}, conn.Rmdir(path)
	})
	return err
}

// Stat returns metadata for path, resolving symlinks transparently:
// the result describes the final target.
func (c *Client) Stat(ctx context.Context, path string) (*remotefs.Metadata, error) {
	return call(ctx, c, remotefs.OpStat, path, func(conn remotefs.Conn) (*remotefs.Metadata, error) {
		return conn.Stat(path)
	})
}

// Lstat returns metadata for path without resolving a final symlink
// component: a symlink reports Type = FileTypeSymlink regardless of
// target existence.
func (c *Client) Lstat(ctx context.Context, path string) (*remotefs.Metadata, error) {
	return call(ctx, c, remotefs.OpLstat, path, func(conn remotefs.Conn) (*remotefs.Metadata, error) {
		return conn.Lstat(path)
	})
}

// Symlink creates link as a symbolic link to target. Succeeds even
// when target does not (yet) exist; fails if link already exists.
func (c *Client) Symlink(ctx context.Context, target, link string) error {
	_, err := call(ctx, c, remotefs.OpSymlink, link, func(conn remotefs.Conn) (struct{}, error) {
		return struct{}{}, conn.Symlink(target, link)
	})
	return err
}

// ReadLink returns the target of the symbolic link at path. Fails if
// the path is missing or not a symlink.
func (c *Client) ReadLink(ctx context.Context, path string) (string, error) {
	return call(ctx, c, remotefs.OpReadLink, path, func(conn remotefs.Conn) (string, error) {
		return conn.ReadLink(path)
	})
}

// RealPath canonicalizes path, resolving dot segments and symlinks.
// The remote resolver's traversal rule is authoritative; a wholly
// missing final component may still resolve.
func (c *Client) RealPath(ctx context.Context, path string) (string, error) {
	return call(ctx, c, remotefs.OpRealPath, path, func(conn remotefs.Conn) (string, error) {
		return conn.RealPath(path)
	})
}

// Rename moves a file or a whole directory subtree from src to dst.
// A nil opts means the remote's default destination-exists behavior.
func (c *Client) Rename(ctx context.Context, src, dst string, opts *remotefs.RenameOptions) error {
	_, err := call(ctx, c, remotefs.OpRename, src, func(conn remotefs.Conn) (struct{}, error) {
		return struct{}{}, conn.Rename(src, dst, opts)
	})
	return err
}

// Unlink removes a file or a symlink without dereferencing it:
// removing a symlink leaves its target intact. Fails on directories.
func (c *Client) Unlink(ctx context.Context, path string) error {
	_, err := call(ctx, c, remotefs.OpUnlink, path, func(conn remotefs.Conn) (struct{}, error) {
		return struct{}{}, conn.Unlink(path)
	})
	return err
}

// ReadFile reads the entire content of the regular file at path.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return call(ctx, c, remotefs.OpReadFile, path, func(conn remotefs.Conn) ([]byte, error) {
		return conn.ReadFile(path)
	})
}

// WriteFile creates or truncates the regular file at path with the
// given content and permission bits.
func (c *Client) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	_, err := call(ctx, c, remotefs.OpWriteFile, path, func(conn remotefs.Conn) (struct{}, error) {
		return struct{}{}, conn.WriteFile(path, data, perm)
	})
	return err
}
