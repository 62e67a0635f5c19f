//go:build !linux

package builder

import "io/fs"

// hostStat has no portable equivalent outside Linux; callers fall back to
// treating every entry as its own host inode (no hard-link detection) and
// skip the cross-device check.
func hostStat(info fs.FileInfo) (ino, dev uint64, major, minor uint32, ok bool) {
	return 0, 0, 0, 0, false
}

// hostOwnership has no portable equivalent outside Linux.
func hostOwnership(info fs.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}
