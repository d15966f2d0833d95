package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Node interface {
	Path() string
	Name() string
}

type File struct {
	path string
	name string
}

type Dir struct {
	path     string
	name     string
	children []Node
}

func (f *File) Path() string { return f.path }
func (f *File) Name() string { return f.name }

func (d *Dir) Path() string     { return d.path }
func (d *Dir) Name() string     { return d.name }
func (d *Dir) Children() []Node { return d.children }

// BuildTree turns parsed paths into a single root. Several arguments are
// grouped under a virtual directory named after the current time.
func BuildTree(paths []ParsedPath) (Node, error) {
	var roots []Node

	for _, p := range paths {
		if p.Kind == PathDir {
			dir, err := buildDirTree(p.FullPath)
			if err != nil {
				return nil, err
			}
			roots = append(roots, dir)
			continue
		}
		roots = append(roots, &File{path: p.FullPath, name: filepath.Base(p.FullPath)})
	}

	switch len(roots) {
	case 0:
		return nil, fmt.Errorf("no valid paths provided")
	case 1:
		return roots[0], nil
	default:
		return virtualRoot(roots, time.Now()), nil
	}
}

func buildDirTree(dirPath string) (*Dir, error) {
	dir := &Dir{
		path:     dirPath,
		name:     filepath.Base(dirPath),
		children: []Node{},
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dirPath, err)
	}

	for _, entry := range entries {
		childPath := filepath.Join(dirPath, entry.Name())

		switch {
		case entry.IsDir():
			child, err := buildDirTree(childPath)
			if err != nil {
				return nil, err
			}
			dir.children = append(dir.children, child)
		case entry.Type().IsRegular():
			dir.children = append(dir.children, &File{path: childPath, name: entry.Name()})
		}
	}

	return dir, nil
}

func virtualRoot(children []Node, now time.Time) *Dir {
	name := "upload_" + now.Format("2006_01_02_150405")
	return &Dir{path: name, name: name, children: children}
}

// CountFiles returns the number of regular files below node.
func CountFiles(node Node) int {
	switch n := node.(type) {
	case *File:
		return 1
	case *Dir:
		total := 0
		for _, child := range n.children {
			total += CountFiles(child)
		}
		return total
	}
	return 0
}
