// Package filesystem provides the plugin file capability on top of go-billy.
//
// Paths are resolved against the filesystem root, which the host sets to the
// working directory. The OS-backed variant is bound to that root: paths and
// symlinks that escape it are rejected.
package filesystem

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// FS implements plugin.FileSystem.
type FS struct {
	fs billy.Filesystem
}

var _ plugin.FileSystem = (*FS)(nil)

// New returns an FS rooted at root on the host file system.
func New(root string) *FS {
	return &FS{fs: osfs.New(root, osfs.WithBoundOS())}
}

// Wrap returns an FS over an existing billy filesystem (memfs in tests).
func Wrap(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// Root returns the directory paths are resolved against.
func (f *FS) Root() string { return f.fs.Root() }

func (f *FS) ReadFile(name string) (string, error) {
	data, err := util.ReadFile(f.fs, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile creates or truncates name, creating parent directories.
func (f *FS) WriteFile(name, content string) error {
	if err := f.fs.MkdirAll(path.Dir(name), dirPerm); err != nil {
		return err
	}
	return util.WriteFile(f.fs, name, []byte(content), filePerm)
}

// AppendFile appends to name, creating it when missing.
func (f *FS) AppendFile(name, content string) error {
	file, err := f.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(file, content); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func (f *FS) Exists(name string) bool {
	_, err := f.fs.Lstat(name)
	return err == nil
}

// Mkdir creates a directory. Without recursive the parent must exist and
// name must not.
func (f *FS) Mkdir(name string, recursive bool) error {
	if recursive {
		return f.fs.MkdirAll(name, dirPerm)
	}
	if _, err := f.fs.Stat(name); err == nil {
		return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrExist}
	}
	parent, err := f.fs.Stat(path.Dir(name))
	if err != nil {
		return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrNotExist}
	}
	if !parent.IsDir() {
		return &os.PathError{Op: "mkdir", Path: name, Err: ferrors.InternalError("parent is not a directory").Build()}
	}
	return f.fs.MkdirAll(name, dirPerm)
}

// ReadDir returns the entry names of a directory, sorted.
func (f *FS) ReadDir(name string) ([]string, error) {
	infos, err := f.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Stat describes name. Creation time is not portable; it reports the
// modification time.
func (f *FS) Stat(name string) (plugin.FileStats, error) {
	fi, err := f.fs.Stat(name)
	if err != nil {
		return plugin.FileStats{}, err
	}
	mt := fi.ModTime()
	return plugin.FileStats{
		Size:        fi.Size(),
		IsFile:      fi.Mode().IsRegular(),
		IsDirectory: fi.IsDir(),
		Created:     mt,
		Modified:    mt,
	}, nil
}

// Copy copies a file, or a directory tree, to dst. dst must differ from src
// and a directory cannot be copied into its own subtree.
func (f *FS) Copy(src, dst string) error {
	fi, err := f.fs.Stat(src)
	if err != nil {
		return err
	}
	if path.Clean(src) == path.Clean(dst) || (fi.IsDir() && within(dst, src)) {
		return &os.PathError{Op: "copy", Path: dst, Err: os.ErrInvalid}
	}
	return f.copy(src, dst, fi)
}

func (f *FS) copy(src, dst string, fi os.FileInfo) error {
	if !fi.IsDir() {
		return f.copyFile(src, dst, fi.Mode().Perm())
	}
	if err := f.fs.MkdirAll(dst, dirPerm); err != nil {
		return err
	}
	entries, err := f.fs.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path.Join(src, e.Name())
		ci, err := f.fs.Stat(child)
		if err != nil {
			return err
		}
		if err := f.copy(child, path.Join(dst, e.Name()), ci); err != nil {
			return err
		}
	}
	return nil
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	p, dir = path.Clean(p), path.Clean(dir)
	switch {
	case p == dir:
		return true
	case dir == ".":
		return p != ".." && !strings.HasPrefix(p, "../") && !path.IsAbs(p)
	default:
		return strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
	}
}

func (f *FS) copyFile(src, dst string, perm os.FileMode) error {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := f.fs.MkdirAll(path.Dir(dst), dirPerm); err != nil {
		return err
	}
	out, err := f.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Move renames src to dst, creating dst's parent.
func (f *FS) Move(src, dst string) error {
	if _, err := f.fs.Lstat(src); err != nil {
		return err
	}
	if err := f.fs.MkdirAll(path.Dir(dst), dirPerm); err != nil {
		return err
	}
	return f.fs.Rename(src, dst)
}

// Remove deletes a file or a directory tree.
func (f *FS) Remove(name string) error {
	if _, err := f.fs.Lstat(name); err != nil {
		return err
	}
	return util.RemoveAll(f.fs, name)
}
