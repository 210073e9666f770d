// Package remotefs defines the domain model for a remote filesystem
// reached over a single SFTP channel: decoded file metadata, directory
// entries, the blocking connection-handle interface, and the error
// taxonomy shared by every operation.
package remotefs

import (
	"os"
	"time"
)

// FileType classifies a remote filesystem object.
//
// The four values are mutually exclusive and exhaustive: every decoded
// Metadata has exactly one of them. Sockets, FIFOs and device nodes all
// collapse into FileTypeOther because no operation in this package
// distinguishes between them.
type FileType uint32

const (
	FileTypeFile FileType = iota + 1
	FileTypeDir
	FileTypeSymlink
	FileTypeOther
)

// String returns the short classification name used in logs and tests.
func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDir:
		return "dir"
	case FileTypeSymlink:
		return "symlink"
	case FileTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// Metadata contains the decoded attributes of a remote file, directory
// or symlink.
//
// Two retrieval modes exist: Stat resolves symlinks transparently and
// reports the target's metadata, Lstat reports the link itself with
// Type = FileTypeSymlink. Owner ids are optional because not every
// server version transmits them; they are nil when absent.
type Metadata struct {
	// Type is the object classification. Always set.
	Type FileType

	// Size is the object size in bytes.
	Size uint64

	// Mode contains the Unix permission bits (type bits stripped).
	Mode os.FileMode

	// ModTime is the last modification time.
	ModTime time.Time

	// AccessTime is the last access time, zero if the server did not
	// transmit it.
	AccessTime time.Time

	// UID is the owner user id, nil if unavailable.
	UID *uint32

	// GID is the owner group id, nil if unavailable.
	GID *uint32
}

// IsFile reports whether the object is a regular file.
func (m *Metadata) IsFile() bool { return m.Type == FileTypeFile }

// IsDir reports whether the object is a directory.
func (m *Metadata) IsDir() bool { return m.Type == FileTypeDir }

// IsSymlink reports whether the object is a symbolic link.
//
// Only metadata produced without link resolution (Lstat, ReadDir) can
// report true here; Stat always resolves through to the target.
func (m *Metadata) IsSymlink() bool { return m.Type == FileTypeSymlink }

// IsOther reports whether the object is neither a regular file, a
// directory nor a symlink (socket, FIFO, device node).
func (m *Metadata) IsOther() bool { return m.Type == FileTypeOther }

// DirEntry is a single directory member as returned by ReadDir: the
// path segment (never a full path) and the member's metadata.
//
// Ordering of entries is filesystem-defined. Callers needing a
// deterministic order must sort.
type DirEntry struct {
	// Name is the entry's name within its parent directory.
	Name string

	// Metadata describes the entry itself. Symlinked children are
	// reported with Type = FileTypeSymlink, never resolved.
	Metadata Metadata
}

// FromFileInfo decodes the transport's raw attribute surface into a
// Metadata value.
//
// The attribute encoding itself is the transport collaborator's
// contract; this function only classifies and copies. It fails with a
// ProtocolError-class error when the attributes are absent.
func FromFileInfo(fi os.FileInfo) (*Metadata, error) {
	if fi == nil {
		return nil, &Error{
			Code:    ErrProtocol,
			Op:      "decode",
			Message: "missing file attributes in response",
		}
	}

	md := &Metadata{
		Size:    uint64(fi.Size()),
		Mode:    fi.Mode().Perm(),
		ModTime: fi.ModTime(),
	}

	mode := fi.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		md.Type = FileTypeSymlink
	case mode.IsDir():
		md.Type = FileTypeDir
	case mode.IsRegular():
		md.Type = FileTypeFile
	default:
		md.Type = FileTypeOther
	}

	return md, nil
}
