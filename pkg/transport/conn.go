package transport

import (
	"io"
	"os"
	"time"

	"github.com/pkg/sftp"

	"github.com/marmos91/sftpbridge/pkg/remotefs"
)

// sftpConn implements remotefs.Conn over an SFTP subsystem channel.
//
// Every method is a blocking round trip on the shared channel. The
// struct itself carries no synchronization: serialization is the
// executor's job, not the transport's.
type sftpConn struct {
	sftp *sftp.Client
	ssh  io.Closer
}

func (c *sftpConn) ReadDir(path string) ([]remotefs.DirEntry, error) {
	infos, err := c.sftp.ReadDir(path)
	if err != nil {
		return nil, err
	}

	entries := make([]remotefs.DirEntry, 0, len(infos))
	for _, fi := range infos {
		md, err := decodeFileInfo(fi)
		if err != nil {
			return nil, err
		}
		entries = append(entries, remotefs.DirEntry{Name: fi.Name(), Metadata: *md})
	}
	return entries, nil
}

func (c *sftpConn) Mkdir(path string, perm os.FileMode) error {
	// The portable MKDIR carries no mode; apply it with a follow-up
	// SETSTAT.
	if err := c.sftp.Mkdir(path); err != nil {
		return err
	}
	if perm != 0 {
		return c.sftp.Chmod(path, perm)
	}
	return nil
}

func (c *sftpConn) Rmdir(path string) error {
	return c.sftp.RemoveDirectory(path)
}

func (c *sftpConn) Stat(path string) (*remotefs.Metadata, error) {
	fi, err := c.sftp.Stat(path)
	if err != nil {
		return nil, err
	}
	return decodeFileInfo(fi)
}

func (c *sftpConn) Lstat(path string) (*remotefs.Metadata, error) {
	fi, err := c.sftp.Lstat(path)
	if err != nil {
		return nil, err
	}
	return decodeFileInfo(fi)
}

func (c *sftpConn) Symlink(target, link string) error {
	return c.sftp.Symlink(target, link)
}

func (c *sftpConn) ReadLink(path string) (string, error) {
	return c.sftp.ReadLink(path)
}

func (c *sftpConn) RealPath(path string) (string, error) {
	return c.sftp.RealPath(path)
}

func (c *sftpConn) Rename(src, dst string, opts *remotefs.RenameOptions) error {
	// Overwrite and atomic replace ride the posix-rename extension;
	// Native forces the plain RENAME even when both are requested.
	if opts != nil && (opts.Overwrite || opts.Atomic) && !opts.Native {
		return c.sftp.PosixRename(src, dst)
	}
	return c.sftp.Rename(src, dst)
}

func (c *sftpConn) Unlink(path string) error {
	// The library's Remove falls back to RMDIR on directories, which
	// would give unlink directory-removal semantics. Guard with an
	// lstat so directories are rejected instead.
	fi, err := c.sftp.Lstat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &remotefs.Error{Code: remotefs.ErrIsADirectory, Path: path}
	}
	return c.sftp.Remove(path)
}

func (c *sftpConn) ReadFile(path string) ([]byte, error) {
	f, err := c.sftp.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (c *sftpConn) WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := c.sftp.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if perm != 0 {
		return c.sftp.Chmod(path, perm)
	}
	return nil
}

func (c *sftpConn) Close() error {
	sftpErr := c.sftp.Close()
	sshErr := c.ssh.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}

// decodeFileInfo converts the transport's raw attribute surface into
// domain metadata, enriching it with the SFTP-specific owner ids and
// access time when the server transmitted them.
func decodeFileInfo(fi os.FileInfo) (*remotefs.Metadata, error) {
	md, err := remotefs.FromFileInfo(fi)
	if err != nil {
		return nil, err
	}

	if st, ok := fi.Sys().(*sftp.FileStat); ok && st != nil {
		uid, gid := st.UID, st.GID
		md.UID = &uid
		md.GID = &gid
		md.AccessTime = time.Unix(int64(st.Atime), 0)
	}

	return md, nil
}
