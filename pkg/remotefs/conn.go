package remotefs

import "os"

// RenameOptions requests non-default rename semantics.
//
// A nil options value means the remote's default behavior, which on
// most servers fails when the destination already exists.
type RenameOptions struct {
	// Overwrite requests that an existing destination be replaced.
	Overwrite bool

	// Atomic requests an atomic replace. On SFTP this is carried by
	// the POSIX rename extension, which implies Overwrite.
	Atomic bool

	// Native requests the server's native rename semantics even when
	// an extension would otherwise be preferred.
	Native bool
}

// Conn is the single, exclusively-owned conduit to the remote
// filesystem subsystem.
//
// Every method blocks for a full network round trip and the handle is
// NOT safe for concurrent invocation: interleaving requests on the one
// logical channel corrupts response correlation. All access must
// therefore funnel through the serializing executor; no other
// component may touch a Conn directly.
//
// Methods return raw transport errors. Translation into the domain
// taxonomy happens above, in the facade.
type Conn interface {
	// ReadDir lists the direct members of a directory. Symlinked
	// children are reported with Type = FileTypeSymlink. Ordering is
	// filesystem-defined.
	ReadDir(path string) ([]DirEntry, error)

	// Mkdir creates a single directory level with the given permission
	// bits. The parent must already exist.
	Mkdir(path string, perm os.FileMode) error

	// Rmdir removes an empty directory.
	Rmdir(path string) error

	// Stat returns metadata for path, resolving symlinks transparently.
	Stat(path string) (*Metadata, error)

	// Lstat returns metadata for path without resolving a final
	// symlink component.
	Lstat(path string) (*Metadata, error)

	// Symlink creates link as a symbolic link to target. The target
	// need not exist.
	Symlink(target, link string) error

	// ReadLink returns the target of a symbolic link.
	ReadLink(path string) (string, error)

	// RealPath canonicalizes a path, resolving dot segments and
	// symlinks. The remote resolver's traversal rule is authoritative.
	RealPath(path string) (string, error)

	// Rename moves a file or a whole directory subtree.
	Rename(src, dst string, opts *RenameOptions) error

	// Unlink removes a file or symlink without dereferencing it.
	Unlink(path string) error

	// ReadFile reads the entire content of a regular file.
	ReadFile(path string) ([]byte, error)

	// WriteFile creates or truncates a regular file with the given
	// content and permission bits.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// Close tears down the channel. Blocking calls in flight fail.
	Close() error
}
