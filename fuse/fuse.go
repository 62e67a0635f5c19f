// Package fuse exposes a reader.Image as a read-only FUSE filesystem,
// per spec.md §4.5. Grounded on the teacher's inode_fuse.go (attribute
// translation, readdir, public-inode-number concerns) and
// original_source/reader/src/fuse.rs, rewritten against go-fuse/v2's
// high-level InodeEmbedder API rather than the teacher's incomplete
// raw-RawFileSystem fragment (the teacher's own inode_fuse.go/inode_linux.go
// are never wired to an actual mount call anywhere in that repo).
package fuse

import (
	"context"
	"syscall"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/reader"
)

// Node is a FUSE inode backed by a PuzzleFS Ino, looked up fresh against
// the image on every call; the adapter keeps no mutable per-node state of
// its own, matching a strictly read-only filesystem.
type Node struct {
	gofs.Inode

	img *reader.Image
	ino metadata.Ino
}

func (n *Node) inode() (*metadata.Inode, syscall.Errno) {
	inode, err := n.img.Lookup(n.ino)
	if err != nil {
		return nil, errnoOf(err)
	}
	return inode, 0
}

// errnoOf maps an errs.Kind to the nearest POSIX errno a FUSE reply
// expects (spec.md §4.4's error taxonomy has no direct errno field, so
// this translation lives at the FUSE boundary only).
func errnoOf(err error) syscall.Errno {
	switch errs.Of(err) {
	case errs.NotFound:
		return syscall.ENOENT
	case errs.NotADirectory:
		return syscall.ENOTDIR
	case errs.IsADirectory:
		return syscall.EISDIR
	case errs.InvalidArgument:
		return syscall.EINVAL
	case errs.ReadOnly:
		return syscall.EROFS
	default:
		return syscall.EIO
	}
}

// errNoXattr is ENODATA's numeric value. go-fuse mounts may in principle
// target a non-Linux GOOS where syscall.ENODATA isn't a defined name;
// the raw value keeps this file portable.
const errNoXattr = syscall.Errno(61)

func fillAttr(inode *metadata.Inode, attr *fuse.Attr) {
	attr.Mode = unixMode(inode)
	attr.Size = inode.FileSize()
	attr.Nlink = 0 // the adapter does not track link counts (spec.md §4.5)
	attr.Owner.Uid = inode.Uid
	attr.Owner.Gid = inode.Gid
	if inode.Kind == metadata.KindChr || inode.Kind == metadata.KindBlk {
		attr.Rdev = uint32(unix.Mkdev(inode.Major, inode.Minor))
	}
	// Atime/Mtime/Ctime are left zero: the schema does not persist them
	// (spec.md §4.5, "times are the Unix epoch").
}

// Mount serves img as a read-only filesystem at mountpoint until the
// returned server is unmounted.
func Mount(mountpoint string, img *reader.Image) (*fuse.Server, error) {
	root := &Node{img: img, ino: metadata.RootIno}
	opts := &gofs.Options{
		MountOptions: fuse.MountOptions{
			FsName:  "puzzlefs",
			Name:    "puzzlefs",
			Options: []string{"ro"},
		},
	}
	server, err := gofs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "mounting fuse filesystem", err)
	}
	return server, nil
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	self, errno := n.inode()
	if errno != 0 {
		return nil, errno
	}
	if self.Kind != metadata.KindDir {
		return nil, syscall.ENOTDIR
	}

	for _, e := range self.Dir.Entries {
		if string(e.Name) != name {
			continue
		}
		child, err := n.img.Lookup(e.Ino)
		if err != nil {
			return nil, errnoOf(err)
		}
		fillAttr(child, &out.Attr)
		out.NodeId = uint64(e.Ino)
		out.Attr.Ino = uint64(e.Ino)

		childNode := &Node{img: n.img, ino: e.Ino}
		stable := gofs.StableAttr{Mode: unixMode(child), Ino: uint64(e.Ino)}
		return n.NewInode(ctx, childNode, stable), 0
	}
	return nil, syscall.ENOENT
}

func (n *Node) Getattr(ctx context.Context, f gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	self, errno := n.inode()
	if errno != 0 {
		return errno
	}
	fillAttr(self, &out.Attr)
	out.Attr.Ino = uint64(n.ino)
	return 0
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	self, errno := n.inode()
	if errno != 0 {
		return nil, errno
	}
	if self.Kind != metadata.KindLnk || self.Additional == nil {
		return nil, syscall.EINVAL
	}
	return self.Additional.SymlinkTarget, 0
}

func (n *Node) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	const writeFlags = syscall.O_WRONLY | syscall.O_RDWR | syscall.O_APPEND | syscall.O_TRUNC | syscall.O_EXCL | syscall.O_CREAT
	if flags&writeFlags != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *Node) Read(ctx context.Context, f gofs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	self, errno := n.inode()
	if errno != 0 {
		return nil, errno
	}
	if self.Kind != metadata.KindFile {
		return nil, syscall.EISDIR
	}
	read, err := n.img.ReadFile(self, off, dest)
	if err != nil {
		return nil, errnoOf(err)
	}
	return fuse.ReadResultData(dest[:read]), 0
}

func (n *Node) Opendir(ctx context.Context) syscall.Errno {
	self, errno := n.inode()
	if errno != 0 {
		return errno
	}
	if self.Kind != metadata.KindDir {
		return syscall.ENOTDIR
	}
	return 0
}

// Readdir does not add "." and ".." itself; go-fuse's generic bridge
// synthesizes them around whatever DirStream a Readdir implementation
// returns.
func (n *Node) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	entries, err := n.img.ReadDir(n.ino)
	if err != nil {
		return nil, errnoOf(err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		child, err := n.img.Lookup(e.Ino)
		if err != nil {
			continue
		}
		list = append(list, fuse.DirEntry{Mode: unixMode(child), Name: string(e.Name), Ino: uint64(e.Ino)})
	}
	return gofs.NewListDirStream(list), 0
}

func (n *Node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	self, errno := n.inode()
	if errno != 0 {
		return 0, errno
	}
	var names []byte
	if self.Additional != nil {
		for _, x := range self.Additional.Xattrs {
			names = append(names, x.Key...)
			names = append(names, 0)
		}
	}
	if len(dest) < len(names) {
		return uint32(len(names)), syscall.ERANGE
	}
	copy(dest, names)
	return uint32(len(names)), 0
}

func (n *Node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	self, errno := n.inode()
	if errno != 0 {
		return 0, errno
	}
	if self.Additional == nil {
		return 0, errNoXattr
	}
	for _, x := range self.Additional.Xattrs {
		if string(x.Key) != attr {
			continue
		}
		if len(dest) < len(x.Value) {
			return uint32(len(x.Value)), syscall.ERANGE
		}
		copy(dest, x.Value)
		return uint32(len(x.Value)), 0
	}
	return 0, errNoXattr
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	*out = fuse.StatfsOut{}
	out.NameLen = 256
	return 0
}

func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	return 0
}

func (n *Node) Release(ctx context.Context, f gofs.FileHandle) syscall.Errno {
	return 0
}

func (n *Node) Releasedir(ctx context.Context, f gofs.FileHandle) {
}

// Every mutating request fails with EROFS (spec.md §4.5). The mount is
// also opened with the "ro" option, so the kernel refuses most of these
// before they would even reach here; these hooks cover the RPCs go-fuse
// still dispatches to the filesystem regardless of that flag.

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofs.Inode, gofs.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *Node) Link(ctx context.Context, target gofs.InodeEmbedder, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *Node) Rename(ctx context.Context, name string, newParent gofs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Setattr(ctx context.Context, f gofs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

func (n *Node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Write(ctx context.Context, f gofs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	return 0, syscall.EROFS
}

func (n *Node) Flush(ctx context.Context, f gofs.FileHandle) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Fsync(ctx context.Context, f gofs.FileHandle, flags uint32) syscall.Errno {
	return syscall.EROFS
}

func (n *Node) Fallocate(ctx context.Context, f gofs.FileHandle, off, size uint64, mode uint32) syscall.Errno {
	return syscall.EROFS
}
