package builder

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/puzzlefs/puzzlefs-go/errs"
)

// discovered is one tree entry found during the walk, tagged with the host
// facts the rest of the builder needs.
type discovered struct {
	HostPath string // absolute path on the host filesystem
	RelPath  string // rootfs-relative path, "/" for root, slash-separated
	Name     string
	IsDir    bool
	Info     fs.FileInfo
	HostIno  uint64
	HostDev  uint64
	Major    uint32
	Minor    uint32
	HostOK   bool // whether HostIno/HostDev/Major/Minor were resolved
}

// walkTree performs the breadth-first, name-sorted walk spec.md §4.3 step 1
// requires: directories first, breadth-first within each level, children
// ordered by raw name bytes, no symlink following, no crossing filesystem
// boundaries.
//
// Grounded on original_source/builder/src/lib.rs's directory-queue walk and
// the teacher's own multi-pass Writer convergence in writer.go.
func walkTree(root string) (dirs []discovered, files []discovered, others []discovered, err error) {
	rootInfo, err := os.Lstat(root)
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.IO, "stat root", err)
	}
	if !rootInfo.IsDir() {
		return nil, nil, nil, errs.New(errs.NotADirectory, root)
	}
	rootIno, rootDev, _, _, rootOK := hostStat(rootInfo)

	rootEntry := discovered{
		HostPath: root,
		RelPath:  "/",
		Name:     "",
		IsDir:    true,
		Info:     rootInfo,
		HostIno:  rootIno,
		HostDev:  rootDev,
		HostOK:   rootOK,
	}
	dirs = append(dirs, rootEntry)

	queue := []discovered{rootEntry}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		names, err := readDirNames(dir.HostPath)
		if err != nil {
			return nil, nil, nil, err
		}
		sort.Slice(names, func(i, j int) bool {
			return bytes.Compare([]byte(names[i]), []byte(names[j])) < 0
		})

		for _, name := range names {
			childHostPath := filepath.Join(dir.HostPath, name)
			info, err := os.Lstat(childHostPath)
			if err != nil {
				return nil, nil, nil, errs.Wrap(errs.IO, "stat "+childHostPath, err)
			}

			ino, dev, major, minor, ok := hostStat(info)
			childRel := joinRel(dir.RelPath, name)
			child := discovered{
				HostPath: childHostPath,
				RelPath:  childRel,
				Name:     name,
				IsDir:    info.IsDir(),
				Info:     info,
				HostIno:  ino,
				HostDev:  dev,
				Major:    major,
				Minor:    minor,
				HostOK:   ok,
			}

			switch {
			case info.IsDir():
				if dir.HostOK && child.HostOK && child.HostDev != dir.HostDev {
					continue // do not cross filesystem boundaries
				}
				dirs = append(dirs, child)
				queue = append(queue, child)
			case info.Mode()&fs.ModeSymlink != 0:
				others = append(others, child)
			case info.Mode().IsRegular():
				files = append(files, child)
			default:
				others = append(others, child)
			}
		}
	}

	return dirs, files, others, nil
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "reading directory "+dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

func joinRel(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
