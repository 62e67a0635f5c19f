// Package builder implements spec.md §4.3: walking a source tree, assigning
// stable inode numbers across deltas, detecting hard links and whiteouts,
// chunking file bodies into content-addressed blobs, and composing the
// resulting rootfs manifest.
//
// Grounded on original_source/builder/src/lib.rs (host_to_pfs,
// merge_chunks_and_prev_files) and the teacher's writer.go multi-pass
// layout convergence.
package builder

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"sort"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/internal/chunker"
	"github.com/puzzlefs/puzzlefs-go/internal/fsstream"
	"github.com/puzzlefs/puzzlefs-go/internal/xattr"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/reader"

	digest "github.com/opencontainers/go-digest"
)

// Options configures a Build.
type Options struct {
	// Tag is the name the resulting manifest is recorded under.
	Tag string
	// BaseTag, if non-empty, names an existing manifest in the same store
	// to build a delta against.
	BaseTag string
	// Compression is applied to every new chunk and metadata blob. A nil
	// Compression means blobstore.Noop{}.
	Compression blobstore.Compression
	// ChunkMin/ChunkAvg/ChunkMax override the chunker's target sizes; zero
	// values fall back to the chunker package defaults.
	ChunkMin, ChunkAvg, ChunkMax uint32
}

func (o Options) compression() blobstore.Compression {
	if o.Compression == nil {
		return blobstore.Noop{}
	}
	return o.Compression
}

// Build walks sourceDir and writes a new layer, plus rootfs and OCI
// manifest, into store, tagged opts.Tag.
func Build(store *blobstore.BlobStore, sourceDir string, opts Options) (v1.Descriptor, error) {
	var base *reader.Image
	var baseIdx *baseIndex
	if opts.BaseTag != "" {
		var err error
		base, err = reader.Open(store, opts.BaseTag, "")
		if err != nil {
			return v1.Descriptor{}, err
		}
		baseIdx, err = buildBaseIndex(base)
		if err != nil {
			return v1.Descriptor{}, err
		}
	}

	dirs, files, others, err := walkTree(sourceDir)
	if err != nil {
		return v1.Descriptor{}, err
	}

	nextIno := metadata.Ino(2)
	if baseIdx != nil && baseIdx.maxIno+1 > nextIno {
		nextIno = baseIdx.maxIno + 1
	}
	hostToPfs := map[uint64]metadata.Ino{}
	pathToIno := map[string]metadata.Ino{"/": metadata.RootIno}

	assign := func(d discovered, trackHardlinks bool) (ino metadata.Ino, isHardlink bool) {
		if trackHardlinks && d.HostOK {
			if existing, ok := hostToPfs[d.HostIno]; ok {
				return existing, true
			}
		}
		if baseIdx != nil {
			if reused, ok := baseIdx.pathToIno[d.RelPath]; ok {
				pathToIno[d.RelPath] = reused
				if trackHardlinks && d.HostOK {
					hostToPfs[d.HostIno] = reused
				}
				return reused, false
			}
		}
		assigned := nextIno
		nextIno++
		pathToIno[d.RelPath] = assigned
		if trackHardlinks && d.HostOK {
			hostToPfs[d.HostIno] = assigned
		}
		return assigned, false
	}

	comp := opts.compression()

	// Dirs: assign inode numbers first, in walk order, so that file/other
	// assignment below can look up parent directory Inos.
	dirInos := make(map[string]metadata.Ino, len(dirs))
	for _, d := range dirs {
		if d.RelPath == "/" {
			dirInos["/"] = metadata.RootIno
			pathToIno["/"] = metadata.RootIno
			continue
		}
		ino, _ := assign(d, false)
		dirInos[d.RelPath] = ino
	}

	// File bodies: stream every regular file through the chunker in
	// discovery order (spec.md §4.3 step 5), then attribute chunks back to
	// files by walking both lists in lockstep.
	fileInos := make([]metadata.Ino, len(files))
	fileHardlink := make([]bool, len(files))
	for i, f := range files {
		ino, isLink := assign(f, true)
		fileInos[i] = ino
		fileHardlink[i] = isLink
	}

	chunkBlobs, fileChunks, err := chunkFiles(store, files, fileHardlink, comp, opts)
	if err != nil {
		return v1.Descriptor{}, err
	}

	othersInos := make(map[int]metadata.Ino, len(others))
	othersHardlink := make(map[int]bool, len(others))
	for i, o := range others {
		ino, isLink := assign(o, true)
		othersInos[i] = ino
		othersHardlink[i] = isLink
	}

	var newInodes []metadata.Inode
	var verityTable = map[metadata.Digest]metadata.VerityDigest{}
	for _, v := range chunkBlobs {
		if !v.Verity.IsZero() {
			verityTable[v.Digest] = v.Verity
		}
	}

	// Directory inodes: entries are this directory's direct children
	// across dirs+files+others, including whiteouts for names the base had
	// that the source no longer does.
	childrenByDir := map[string][]metadata.DirEnt{}
	addChild := func(parentRel, name string, ino metadata.Ino) {
		childrenByDir[parentRel] = append(childrenByDir[parentRel], metadata.DirEnt{Name: []byte(name), Ino: ino})
	}
	parentOf := func(relPath string) string {
		for i := len(relPath) - 1; i >= 0; i-- {
			if relPath[i] == '/' {
				if i == 0 {
					return "/"
				}
				return relPath[:i]
			}
		}
		return "/"
	}

	for _, d := range dirs {
		if d.RelPath == "/" {
			continue
		}
		addChild(parentOf(d.RelPath), d.Name, dirInos[d.RelPath])
	}
	for i, f := range files {
		addChild(parentOf(f.RelPath), f.Name, fileInos[i])
	}
	for i, o := range others {
		addChild(parentOf(o.RelPath), o.Name, othersInos[i])
	}

	// Whiteouts: a directory present in both base and source loses a name
	// that the base had and the source no longer does.
	if baseIdx != nil {
		for _, d := range dirs {
			baseChildren, ok := baseIdx.dirChildren[d.RelPath]
			if !ok {
				continue
			}
			present := map[string]bool{}
			for _, e := range childrenByDir[d.RelPath] {
				present[string(e.Name)] = true
			}
			for _, be := range baseChildren {
				name := string(be.Name)
				if present[name] {
					continue
				}
				addChild(d.RelPath, name, be.Ino)
				newInodes = append(newInodes, metadata.Inode{Ino: be.Ino, Kind: metadata.KindWht})
			}
		}
	}

	for _, d := range dirs {
		ino := dirInos[d.RelPath]
		if d.RelPath == "/" {
			ino = metadata.RootIno
		}
		entries := childrenByDir[d.RelPath]
		sort.Slice(entries, func(i, j int) bool {
			return bytes.Compare(entries[i].Name, entries[j].Name) < 0
		})
		additional, err := captureXattrs(d.HostPath)
		if err != nil {
			return v1.Descriptor{}, err
		}
		uid, gid := ownershipOf(d.Info)
		newInodes = append(newInodes, metadata.Inode{
			Ino:        ino,
			Kind:       metadata.KindDir,
			Uid:        uid,
			Gid:        gid,
			Perm:       permOf(d.Info),
			Dir:        &metadata.DirList{Entries: entries},
			Additional: additional,
		})
	}

	for i, f := range files {
		if fileHardlink[i] {
			continue
		}
		additional, err := captureXattrs(f.HostPath)
		if err != nil {
			return v1.Descriptor{}, err
		}
		uid, gid := ownershipOf(f.Info)
		newInodes = append(newInodes, metadata.Inode{
			Ino:        fileInos[i],
			Kind:       metadata.KindFile,
			Uid:        uid,
			Gid:        gid,
			Perm:       permOf(f.Info),
			Chunks:     fileChunks[i],
			Additional: additional,
		})
	}

	for i, o := range others {
		if othersHardlink[i] {
			continue
		}
		inode, err := otherInode(o, othersInos[i])
		if err != nil {
			return v1.Descriptor{}, err
		}
		newInodes = append(newInodes, inode)
	}

	sort.Slice(newInodes, func(i, j int) bool { return newInodes[i].Ino < newInodes[j].Ino })

	var layerBuf bytes.Buffer
	if err := metadata.EncodeLayer(&layerBuf, newInodes); err != nil {
		return v1.Descriptor{}, err
	}
	layerPut, err := store.Put(layerBuf.Bytes(), comp)
	if err != nil {
		return v1.Descriptor{}, err
	}
	if !layerPut.Verity.IsZero() {
		verityTable[layerPut.Digest] = layerPut.Verity
	}

	var metadatas []metadata.BlobRef
	metadatas = append(metadatas, metadata.BlobRef{Digest: layerPut.Digest, Codec: blobstore.CodecFor(comp, layerPut.Compressed)})
	if base != nil {
		for _, m := range base.Rootfs.Metadatas {
			if m.Digest == layerPut.Digest {
				continue
			}
			metadatas = append(metadatas, m)
		}
		for d, v := range base.Rootfs.FsVerityData {
			if _, exists := verityTable[d]; !exists {
				verityTable[d] = v
			}
		}
	}

	manifestVersion := uint64(1)
	if base != nil {
		manifestVersion = base.Rootfs.ManifestVersion + 1
	}
	rootfs := metadata.Rootfs{
		Metadatas:       metadatas,
		FsVerityData:    verityTable,
		ManifestVersion: manifestVersion,
	}

	var rootfsBuf bytes.Buffer
	if err := metadata.EncodeRootfs(&rootfsBuf, &rootfs); err != nil {
		return v1.Descriptor{}, err
	}
	rootfsPut, err := store.Put(rootfsBuf.Bytes(), comp)
	if err != nil {
		return v1.Descriptor{}, err
	}

	rootVerity := ""
	if !rootfsPut.Verity.IsZero() {
		rootVerity = rootfsPut.Verity.String()
	}
	ociDigest := digest.NewDigestFromEncoded(digest.SHA256, rootfsPut.Digest.String())
	desc, err := store.Image.WriteManifest(ociDigest, int64(rootfsBuf.Len()), rootfsPut.Compressed, rootVerity)
	if err != nil {
		return v1.Descriptor{}, err
	}
	if err := store.Image.AddTag(opts.Tag, desc); err != nil {
		return v1.Descriptor{}, err
	}

	return desc, nil
}

// chunkFiles streams every non-hardlink regular file through the chunker in
// discovery order, writes each produced chunk as its own blob, and
// attributes chunk byte-ranges back to files (spec.md §4.3 step 5).
func chunkFiles(store *blobstore.BlobStore, files []discovered, hardlink []bool, comp blobstore.Compression, opts Options) ([]blobstore.PutResult, [][]metadata.FileChunk, error) {
	var entries []fsstream.Entry
	var order []int
	for i, f := range files {
		if hardlink[i] {
			continue
		}
		entries = append(entries, fsstream.Entry{Path: f.HostPath, Len: f.Info.Size()})
		order = append(order, i)
	}

	min, avg, max := opts.ChunkMin, opts.ChunkAvg, opts.ChunkMax
	if min == 0 {
		min = chunker.DefaultMin
	}
	if avg == 0 {
		avg = chunker.DefaultAvg
	}
	if max == 0 {
		max = chunker.DefaultMax
	}
	c := chunker.New(int(min), int(avg), int(max))

	stream := fsstream.New(entries)
	defer stream.Close()

	buf := make([]byte, 256*1024)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if pushErr := c.Push(buf[:n]); pushErr != nil {
				return nil, nil, pushErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errs.Wrap(errs.IO, "reading file stream", err)
		}
	}
	if err := c.Finish(); err != nil {
		return nil, nil, err
	}
	chunks := c.Drain()

	var blobs []blobstore.PutResult
	for _, chunk := range chunks {
		put, err := store.Put(chunk.Data, comp)
		if err != nil {
			return nil, nil, err
		}
		blobs = append(blobs, put)
	}

	fileChunks := make([][]metadata.FileChunk, len(files))
	chunkIdx := 0
	chunkConsumed := uint64(0)
	for _, i := range order {
		remaining := uint64(files[i].Info.Size())
		var list []metadata.FileChunk
		for remaining > 0 {
			if chunkIdx >= len(chunks) {
				return nil, nil, errs.New(errs.IO, "chunk stream exhausted before file bodies consumed")
			}
			chunkLen := uint64(len(chunks[chunkIdx].Data))
			available := chunkLen - chunkConsumed
			take := available
			if take > remaining {
				take = remaining
			}
			blob := blobs[chunkIdx]
			list = append(list, metadata.FileChunk{
				Blob: metadata.BlobRef{Digest: blob.Digest, Offset: chunkConsumed, Codec: blobstore.CodecFor(comp, blob.Compressed)},
				Len:  take,
			})
			chunkConsumed += take
			remaining -= take
			if chunkConsumed >= chunkLen {
				chunkIdx++
				chunkConsumed = 0
			}
		}
		fileChunks[i] = list
	}

	return blobs, fileChunks, nil
}

func permOf(info fs.FileInfo) uint16 {
	return uint16(info.Mode().Perm()) | setBitsOf(info)
}

func setBitsOf(info fs.FileInfo) uint16 {
	var bits uint16
	mode := info.Mode()
	if mode&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		bits |= 0o1000
	}
	return bits
}

func ownershipOf(info fs.FileInfo) (uid, gid uint32) {
	u, g, ok := hostOwnership(info)
	if !ok {
		return 0, 0
	}
	return u, g
}

func captureXattrs(hostPath string) (*metadata.Additional, error) {
	pairs, err := xattr.List(hostPath)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "reading xattrs for "+hostPath, err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	xs := make([]metadata.Xattr, len(pairs))
	for i, p := range pairs {
		xs[i] = metadata.Xattr{Key: []byte(p.Key), Value: p.Value}
	}
	return &metadata.Additional{Xattrs: xs}, nil
}

func otherInode(d discovered, ino metadata.Ino) (metadata.Inode, error) {
	mode := d.Info.Mode()
	additional, err := captureXattrs(d.HostPath)
	if err != nil {
		return metadata.Inode{}, err
	}
	uid, gid := ownershipOf(d.Info)
	base := metadata.Inode{
		Ino:        ino,
		Uid:        uid,
		Gid:        gid,
		Perm:       permOf(d.Info),
		Additional: additional,
	}

	switch {
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(d.HostPath)
		if err != nil {
			return metadata.Inode{}, errs.Wrap(errs.IO, "reading symlink "+d.HostPath, err)
		}
		if base.Additional == nil {
			base.Additional = &metadata.Additional{}
		}
		base.Additional.SymlinkTarget = []byte(target)
		base.Kind = metadata.KindLnk
	case mode&fs.ModeNamedPipe != 0:
		base.Kind = metadata.KindFifo
	case mode&fs.ModeSocket != 0:
		base.Kind = metadata.KindSock
	case mode&fs.ModeDevice != 0:
		base.Major, base.Minor = d.Major, d.Minor
		if mode&fs.ModeCharDevice != 0 {
			base.Kind = metadata.KindChr
		} else {
			base.Kind = metadata.KindBlk
		}
	default:
		base.Kind = metadata.KindUnknown
	}
	return base, nil
}
