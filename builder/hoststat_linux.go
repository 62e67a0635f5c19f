//go:build linux

package builder

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// hostStat extracts the identifying and device fields builder needs from
// an os/fs FileInfo: host inode number (for hard-link detection), host
// device number (to avoid crossing filesystem boundaries), and, for
// device nodes, the major/minor pair.
func hostStat(info fs.FileInfo) (ino, dev uint64, major, minor uint32, ok bool) {
	st, isStat := info.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, 0, 0, 0, false
	}
	rdev := uint64(st.Rdev)
	return uint64(st.Ino), uint64(st.Dev), unix.Major(rdev), unix.Minor(rdev), true
}

// hostOwnership extracts the uid/gid builder records in every inode.
func hostOwnership(info fs.FileInfo) (uid, gid uint32, ok bool) {
	st, isStat := info.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, 0, false
	}
	return st.Uid, st.Gid, true
}
