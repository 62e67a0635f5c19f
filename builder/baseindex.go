package builder

import (
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/reader"
)

// baseIndex flattens a base image's composed view for delta builds: a
// path-to-Ino map for inode-number reuse, and a per-directory child list
// for whiteout detection (spec.md §4.3 steps 3-4).
type baseIndex struct {
	pathToIno   map[string]metadata.Ino
	dirChildren map[string][]metadata.DirEnt
	maxIno      metadata.Ino
}

func buildBaseIndex(img *reader.Image) (*baseIndex, error) {
	idx := &baseIndex{
		pathToIno:   map[string]metadata.Ino{"/": metadata.RootIno},
		dirChildren: map[string][]metadata.DirEnt{},
		maxIno:      img.MaxIno(),
	}

	var walk func(ino metadata.Ino, relPath string) error
	walk = func(ino metadata.Ino, relPath string) error {
		inode, err := img.Lookup(ino)
		if err != nil {
			return err
		}
		if inode.Kind != metadata.KindDir {
			return nil
		}
		children, err := img.ReadDir(ino)
		if err != nil {
			return err
		}
		idx.dirChildren[relPath] = children
		for _, e := range children {
			childPath := joinRel(relPath, string(e.Name))
			idx.pathToIno[childPath] = e.Ino
			if err := walk(e.Ino, childPath); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(metadata.RootIno, "/"); err != nil {
		return nil, err
	}
	return idx, nil
}
