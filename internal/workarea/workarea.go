// Package workarea manages the scratch directory a batch of loads stages files in.
package workarea

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Area is an acquired scratch directory
type Area struct {
	dir string
	// root is the top-most directory Acquire created; Release removes it
	root string
}

// Acquire creates a writable scratch directory under base. If base does not
// exist it is created and becomes the area itself; an existing base gets a
// fresh subdirectory so Release never removes files it did not create.
// An empty base uses the system temporary directory.
func Acquire(base string) (*Area, error) {
	if base == "" {
		dir, err := os.MkdirTemp("", "sdohload-")
		if err != nil {
			return nil, fmt.Errorf("failed to create work area: %w", err)
		}
		return &Area{dir: dir}, nil
	}

	err := os.Mkdir(base, 0o750)
	switch {
	case err == nil:
		if err := checkWritable(base); err != nil {
			_ = os.RemoveAll(base)
			return nil, err
		}
		return &Area{dir: base}, nil
	case errors.Is(err, os.ErrExist):
		dir, err := os.MkdirTemp(base, "sdohload-")
		if err != nil {
			return nil, fmt.Errorf("work area %s is not writable: %w", base, err)
		}
		return &Area{dir: dir}, nil
	default:
		root := topMissing(base)
		if mkErr := os.MkdirAll(base, 0o750); mkErr != nil {
			_ = os.RemoveAll(root)
			return nil, fmt.Errorf("failed to create work area: %w", mkErr)
		}
		if err := checkWritable(base); err != nil {
			_ = os.RemoveAll(root)
			return nil, err
		}
		return &Area{dir: base, root: root}, nil
	}
}

// topMissing returns the outermost ancestor of dir (or dir itself) that does not exist yet
func topMissing(dir string) string {
	dir = filepath.Clean(dir)
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		if _, err := os.Stat(parent); err == nil {
			return dir
		}
		dir = parent
	}
}

// Dir returns the area's directory
func (a *Area) Dir() string { return a.dir }

// Subdir creates and returns a directory inside the area
func (a *Area) Subdir(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid work area entry %q", name)
	}
	dir := filepath.Join(a.dir, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}

// Release removes the area and everything in it
func (a *Area) Release() error {
	root := a.root
	if root == "" {
		root = a.dir
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("failed to remove work area %s: %w", root, err)
	}
	return nil
}

// With acquires an area, runs fn, and releases the area on every exit path
func With(base string, fn func(*Area) error) (err error) {
	area, err := Acquire(base)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := area.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(area)
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".writable-")
	if err != nil {
		return fmt.Errorf("work area %s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
