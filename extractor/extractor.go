// Package extractor materializes a PuzzleFS image onto a real filesystem,
// per SPEC_FULL.md's extraction component.
//
// Grounded on original_source/extractor/src/lib.rs: safe_path's prefix
// walk becomes github.com/cyphar/filepath-securejoin (already part of
// this module's dependency surface, hardened against symlink-prefix and
// ".." escape the same way safe_path was, but maintained rather than
// hand-rolled); the Sock and Wht arms that original_source left as
// todo!() are implemented here (Wht entries never reach this walk at
// all, since reader.Image.ReadDir already filters them out of the
// composed view).
package extractor

import (
	"os"
	"path"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/internal/xattr"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/reader"
)

type queued struct {
	ino     metadata.Ino
	relPath string
}

// Extract walks img's composed tree breadth-first and recreates it under
// destDir: directories via MkdirAll, regular files via ranged reads,
// symlinks, fifos, sockets and device nodes via their OS primitives, and
// every extended attribute the source inode carried. A name that maps to
// an Ino already extracted under this walk is hard-linked to the first
// occurrence rather than re-materialized, mirroring how the builder
// collapses hard links into one stored body.
func Extract(img *reader.Image, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errs.Wrap(errs.IO, "creating extract dir", err)
	}

	seen := map[metadata.Ino]string{}
	queue := []queued{{ino: metadata.RootIno, relPath: ""}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		inode, err := img.Lookup(item.ino)
		if err != nil {
			return err
		}

		target, err := securejoin.SecureJoin(destDir, item.relPath)
		if err != nil {
			return errs.Wrap(errs.InvalidArgument, "resolving extract path "+item.relPath, err)
		}

		if prior, ok := seen[item.ino]; ok && inode.Kind != metadata.KindDir {
			if err := os.Link(prior, target); err != nil {
				return errs.Wrap(errs.IO, "hard-linking "+target, err)
			}
			continue
		}

		if err := materialize(img, inode, target); err != nil {
			return err
		}
		if inode.Kind != metadata.KindDir {
			seen[item.ino] = target
		}

		if err := chownIfOwned(target, inode); err != nil {
			return err
		}
		if inode.Additional != nil {
			if err := replayXattrs(target, inode.Additional); err != nil {
				return err
			}
		}

		if inode.Kind != metadata.KindDir {
			continue
		}
		entries, err := img.ReadDir(item.ino)
		if err != nil {
			return err
		}
		for _, e := range entries {
			queue = append(queue, queued{ino: e.Ino, relPath: path.Join(item.relPath, string(e.Name))})
		}
	}

	return nil
}

func materialize(img *reader.Image, inode *metadata.Inode, target string) error {
	perm := os.FileMode(inode.Perm & 0o7777)

	switch inode.Kind {
	case metadata.KindDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errs.Wrap(errs.IO, "creating directory "+target, err)
		}
		return os.Chmod(target, perm)

	case metadata.KindFile:
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
		if err != nil {
			return errs.Wrap(errs.IO, "creating file "+target, err)
		}
		defer f.Close()

		buf := make([]byte, 256*1024)
		var offset int64
		size := int64(inode.FileSize())
		for offset < size {
			n, err := img.ReadFile(inode, offset, buf)
			if n > 0 {
				if _, werr := f.Write(buf[:n]); werr != nil {
					return errs.Wrap(errs.IO, "writing "+target, werr)
				}
				offset += int64(n)
			}
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
		}
		return nil

	case metadata.KindLnk:
		if inode.Additional == nil {
			return errs.New(errs.InvalidSchema, "symlink inode missing target: "+target)
		}
		if err := os.Symlink(string(inode.Additional.SymlinkTarget), target); err != nil {
			return errs.Wrap(errs.IO, "creating symlink "+target, err)
		}
		return nil

	case metadata.KindFifo:
		if err := unix.Mkfifo(target, uint32(perm)); err != nil {
			return errs.Wrap(errs.IO, "creating fifo "+target, err)
		}
		return nil

	case metadata.KindSock:
		if err := unix.Mknod(target, unix.S_IFSOCK|uint32(perm), 0); err != nil {
			return errs.Wrap(errs.IO, "creating socket node "+target, err)
		}
		return nil

	case metadata.KindChr:
		dev := int(unix.Mkdev(inode.Major, inode.Minor))
		if err := unix.Mknod(target, unix.S_IFCHR|uint32(perm), dev); err != nil {
			return errs.Wrap(errs.IO, "creating char device "+target, err)
		}
		return nil

	case metadata.KindBlk:
		dev := int(unix.Mkdev(inode.Major, inode.Minor))
		if err := unix.Mknod(target, unix.S_IFBLK|uint32(perm), dev); err != nil {
			return errs.Wrap(errs.IO, "creating block device "+target, err)
		}
		return nil

	default:
		return errs.New(errs.InvalidSchema, "unextractable inode kind "+inode.Kind.String()+" at "+target)
	}
}

// chownIfOwned applies an inode's recorded uid/gid. Extraction commonly
// runs unprivileged, so a permission failure here is not fatal; the file
// keeps the extracting process's ownership instead.
func chownIfOwned(target string, inode *metadata.Inode) error {
	if inode.Uid == 0 && inode.Gid == 0 {
		return nil
	}
	if err := os.Lchown(target, int(inode.Uid), int(inode.Gid)); err != nil {
		if os.IsPermission(err) {
			return nil
		}
		return errs.Wrap(errs.IO, "chowning "+target, err)
	}
	return nil
}

func replayXattrs(target string, additional *metadata.Additional) error {
	if len(additional.Xattrs) == 0 {
		return nil
	}
	pairs := make([]xattr.Pair, len(additional.Xattrs))
	for i, x := range additional.Xattrs {
		pairs[i] = xattr.Pair{Key: string(x.Key), Value: x.Value}
	}
	if err := xattr.Set(target, pairs); err != nil {
		return errs.Wrap(errs.IO, "setting xattrs on "+target, err)
	}
	return nil
}
