package fuse

import "github.com/puzzlefs/puzzlefs-go/metadata"

// Unix mode type bits, grounded on the teacher's mode.go (itself following
// https://golang.org/src/os/stat_linux.go); kept as plain constants here
// rather than a third-party syscall-constant import since the FUSE
// attribute wire format wants exactly these bit positions regardless of
// host GOOS.
const (
	modeIFMT   = 0xf000
	modeIFREG  = 0x8000
	modeIFDIR  = 0x4000
	modeIFBLK  = 0x6000
	modeIFCHR  = 0x2000
	modeIFIFO  = 0x1000
	modeIFLNK  = 0xa000
	modeIFSOCK = 0xc000
)

// unixMode assembles a FUSE Attr.Mode from an inode's Kind and its stored
// 12 permission bits (spec.md §4.5's attribute translation).
func unixMode(inode *metadata.Inode) uint32 {
	mode := uint32(inode.Perm) & 0o7777

	switch inode.Kind {
	case metadata.KindDir:
		mode |= modeIFDIR
	case metadata.KindFile:
		mode |= modeIFREG
	case metadata.KindLnk:
		mode |= modeIFLNK
	case metadata.KindFifo:
		mode |= modeIFIFO
	case metadata.KindSock:
		mode |= modeIFSOCK
	case metadata.KindChr:
		mode |= modeIFCHR
	case metadata.KindBlk:
		mode |= modeIFBLK
	}

	return mode
}
