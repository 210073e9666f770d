package client

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/sftpbridge/pkg/remotefs"
)

// memConn is an in-memory remotefs.Conn used as the remote filesystem
// in tests. It implements the same observable semantics the e2e
// behavior of a real server exhibits: lstat does not follow the final
// symlink, unlink refuses directories, realpath resolves dot segments
// against the existing portion of the tree only.
type memConn struct {
	mu   sync.Mutex
	root *memNode
}

type memNode struct {
	typ      remotefs.FileType
	mode     os.FileMode
	mtime    time.Time
	data     []byte
	target   string
	children map[string]*memNode
}

func newMemConn() *memConn {
	return &memConn{root: newDirNode(0755)}
}

func newDirNode(mode os.FileMode) *memNode {
	return &memNode{
		typ:      remotefs.FileTypeDir,
		mode:     mode,
		mtime:    time.Now(),
		children: map[string]*memNode{},
	}
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

const maxLinkDepth = 40

// lookup walks to the node at path. Intermediate symlinks are always
// resolved; the final component only when follow is true.
func (c *memConn) lookup(path string, follow bool) (*memNode, error) {
	return c.walk(c.root, splitPath(path), follow, 0)
}

func (c *memConn) walk(cur *memNode, parts []string, follow bool, depth int) (*memNode, error) {
	if depth > maxLinkDepth {
		return nil, os.ErrNotExist
	}

	for i, name := range parts {
		if cur.typ != remotefs.FileTypeDir {
			return nil, &remotefs.Error{Code: remotefs.ErrNotADirectory}
		}
		child, ok := cur.children[name]
		if !ok {
			return nil, os.ErrNotExist
		}

		last := i == len(parts)-1
		if child.typ == remotefs.FileTypeSymlink && (!last || follow) {
			resolved, err := c.walk(c.root, splitPath(child.target), true, depth+1)
			if err != nil {
				return nil, err
			}
			child = resolved
		}
		cur = child
	}
	return cur, nil
}

// lookupParent returns the directory containing the final component of
// path, plus that component's name.
func (c *memConn) lookupParent(path string) (*memNode, string, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, "", os.ErrInvalid
	}

	parent, err := c.walk(c.root, parts[:len(parts)-1], true, 0)
	if err != nil {
		return nil, "", err
	}
	if parent.typ != remotefs.FileTypeDir {
		return nil, "", &remotefs.Error{Code: remotefs.ErrNotADirectory}
	}
	return parent, parts[len(parts)-1], nil
}

func nodeMetadata(n *memNode) *remotefs.Metadata {
	return &remotefs.Metadata{
		Type:    n.typ,
		Size:    uint64(len(n.data)),
		Mode:    n.mode,
		ModTime: n.mtime,
	}
}

func (c *memConn) ReadDir(path string) ([]remotefs.DirEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir, err := c.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if dir.typ != remotefs.FileTypeDir {
		return nil, &remotefs.Error{Code: remotefs.ErrNotADirectory}
	}

	entries := make([]remotefs.DirEntry, 0, len(dir.children))
	for name, child := range dir.children {
		entries = append(entries, remotefs.DirEntry{Name: name, Metadata: *nodeMetadata(child)})
	}
	return entries, nil
}

func (c *memConn) Mkdir(path string, perm os.FileMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent, name, err := c.lookupParent(path)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return os.ErrExist
	}
	parent.children[name] = newDirNode(perm)
	return nil
}

func (c *memConn) Rmdir(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent, name, err := c.lookupParent(path)
	if err != nil {
		return err
	}
	node, ok := parent.children[name]
	if !ok {
		return os.ErrNotExist
	}
	if node.typ != remotefs.FileTypeDir {
		return &remotefs.Error{Code: remotefs.ErrNotADirectory}
	}
	if len(node.children) > 0 {
		return &remotefs.Error{Code: remotefs.ErrNotEmpty}
	}
	delete(parent.children, name)
	return nil
}

func (c *memConn) Stat(path string) (*remotefs.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := c.lookup(path, true)
	if err != nil {
		return nil, err
	}
	return nodeMetadata(node), nil
}

func (c *memConn) Lstat(path string) (*remotefs.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := c.lookup(path, false)
	if err != nil {
		return nil, err
	}
	return nodeMetadata(node), nil
}

func (c *memConn) Symlink(target, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent, name, err := c.lookupParent(link)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return os.ErrExist
	}
	parent.children[name] = &memNode{
		typ:    remotefs.FileTypeSymlink,
		mode:   0777,
		mtime:  time.Now(),
		target: target,
	}
	return nil
}

func (c *memConn) ReadLink(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := c.lookup(path, false)
	if err != nil {
		return "", err
	}
	if node.typ != remotefs.FileTypeSymlink {
		return "", &remotefs.Error{Code: remotefs.ErrNotASymlink}
	}
	return node.target, nil
}

// RealPath resolves dot segments and symlinks against the existing
// portion of the tree. A missing final span of plain components
// resolves lexically; a dot segment that must be evaluated after
// resolution has left the existing tree fails.
func (c *memConn) RealPath(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolved := []string{}
	cur := c.root
	missing := false
	remaining := strings.Split(path, "/")

	for depth := 0; len(remaining) > 0; {
		name := remaining[0]
		remaining = remaining[1:]

		switch name {
		case "", ".":
			if missing {
				return "", os.ErrNotExist
			}
		case "..":
			if missing {
				return "", os.ErrNotExist
			}
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
				node, err := c.walk(c.root, resolved, true, 0)
				if err != nil {
					return "", err
				}
				cur = node
			}
		default:
			if missing {
				resolved = append(resolved, name)
				continue
			}
			child, ok := cur.children[name]
			if !ok {
				missing = true
				resolved = append(resolved, name)
				continue
			}
			if child.typ == remotefs.FileTypeSymlink {
				depth++
				if depth > maxLinkDepth {
					return "", os.ErrNotExist
				}
				targetParts := strings.Split(child.target, "/")
				if strings.HasPrefix(child.target, "/") {
					resolved = nil
					cur = c.root
				}
				remaining = append(append([]string{}, targetParts...), remaining...)
				continue
			}
			resolved = append(resolved, name)
			cur = child
		}
	}

	return "/" + strings.Join(resolved, "/"), nil
}

func (c *memConn) Rename(src, dst string, opts *remotefs.RenameOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcParent, srcName, err := c.lookupParent(src)
	if err != nil {
		return err
	}
	node, ok := srcParent.children[srcName]
	if !ok {
		return os.ErrNotExist
	}

	dstParent, dstName, err := c.lookupParent(dst)
	if err != nil {
		return err
	}
	// Same precedence as the transport: Native forces the plain rename,
	// which fails on an existing destination.
	if _, exists := dstParent.children[dstName]; exists {
		overwrite := opts != nil && (opts.Overwrite || opts.Atomic) && !opts.Native
		if !overwrite {
			return os.ErrExist
		}
	}

	delete(srcParent.children, srcName)
	dstParent.children[dstName] = node
	return nil
}

func (c *memConn) Unlink(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent, name, err := c.lookupParent(path)
	if err != nil {
		return err
	}
	node, ok := parent.children[name]
	if !ok {
		return os.ErrNotExist
	}
	if node.typ == remotefs.FileTypeDir {
		return &remotefs.Error{Code: remotefs.ErrIsADirectory}
	}
	delete(parent.children, name)
	return nil
}

func (c *memConn) ReadFile(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, err := c.lookup(path, true)
	if err != nil {
		return nil, err
	}
	if node.typ == remotefs.FileTypeDir {
		return nil, &remotefs.Error{Code: remotefs.ErrIsADirectory}
	}
	out := make([]byte, len(node.data))
	copy(out, node.data)
	return out, nil
}

func (c *memConn) WriteFile(path string, data []byte, perm os.FileMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent, name, err := c.lookupParent(path)
	if err != nil {
		return err
	}
	if existing, ok := parent.children[name]; ok && existing.typ == remotefs.FileTypeDir {
		return &remotefs.Error{Code: remotefs.ErrIsADirectory}
	}
	parent.children[name] = &memNode{
		typ:   remotefs.FileTypeFile,
		mode:  perm,
		mtime: time.Now(),
		data:  append([]byte{}, data...),
	}
	return nil
}

func (c *memConn) Close() error { return nil }

// mustMkdirAll is a test helper building fixture trees.
func (c *memConn) mustMkdirAll(path string) {
	parts := splitPath(path)
	cur := c.root
	for _, name := range parts {
		child, ok := cur.children[name]
		if !ok {
			child = newDirNode(0755)
			cur.children[name] = child
		}
		cur = child
	}
}

// mustWriteFile is a test helper creating fixture files.
func (c *memConn) mustWriteFile(path, content string) {
	if err := c.WriteFile(path, []byte(content), 0644); err != nil {
		panic(err)
	}
}
