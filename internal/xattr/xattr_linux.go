//go:build linux

// Package xattr reads and writes extended attributes, shared by the
// builder (capture) and extractor (replay). Preserved for every inode
// kind including device/fifo/socket nodes (spec.md §9, resolved Open
// Question 3), though POSIX does not guarantee support on every node
// type.
package xattr

import "golang.org/x/sys/unix"

// Pair is one extended attribute key/value.
type Pair struct {
	Key   string
	Value []byte
}

// List returns every extended attribute set on path (symlink-aware: it
// does not follow a symlink at path itself).
func List(path string) ([]Pair, error) {
	size, err := unix.Llistxattr(path, nil)
	if err != nil {
		if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
			return nil, nil
		}
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	namesBuf := make([]byte, size)
	if _, err := unix.Llistxattr(path, namesBuf); err != nil {
		return nil, err
	}

	var out []Pair
	for _, name := range splitNulTerminated(namesBuf) {
		vsize, err := unix.Lgetxattr(path, name, nil)
		if err != nil {
			continue
		}
		val := make([]byte, vsize)
		if vsize > 0 {
			if _, err := unix.Lgetxattr(path, name, val); err != nil {
				continue
			}
		}
		out = append(out, Pair{Key: name, Value: val})
	}
	return out, nil
}

func splitNulTerminated(buf []byte) []string {
	var out []string
	start := 0
	for i, b := range buf {
		if b == 0 {
			if i > start {
				out = append(out, string(buf[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

// Set applies pairs to path. A node type that rejects xattrs entirely
// (fifos and symlinks commonly do) is not treated as fatal.
func Set(path string, pairs []Pair) error {
	for _, p := range pairs {
		if err := unix.Lsetxattr(path, p.Key, p.Value, 0); err != nil {
			if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
				continue
			}
			return err
		}
	}
	return nil
}
