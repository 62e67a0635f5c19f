// Command puzzlefs builds, mounts, and extracts PuzzleFS images.
//
// Grounded on the teacher's cmd/sqfs/main.go: a bare os.Args switch over
// subcommand names, no flag-parsing framework. Subcommand shapes follow
// original_source/exe/src/main.rs's Build/Mount/Extract commands.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/puzzlefs/puzzlefs-go/blobstore"
	"github.com/puzzlefs/puzzlefs-go/builder"
	"github.com/puzzlefs/puzzlefs-go/extractor"
	"github.com/puzzlefs/puzzlefs-go/fuse"
	"github.com/puzzlefs/puzzlefs-go/metadata"
	"github.com/puzzlefs/puzzlefs-go/reader"
)

const usage = `puzzlefs - content-addressed, deduplicating container filesystem

Usage:
  puzzlefs build    [-v] [-base TAG] [-compression zstd|xz|none] [-verity] SOURCE_DIR OCI_DIR TAG
  puzzlefs mount    [-v] [-verify DIGEST] OCI_DIR TAG MOUNTPOINT
  puzzlefs umount   MOUNTPOINT
  puzzlefs extract  [-v] OCI_DIR TAG EXTRACT_DIR
  puzzlefs help

-v enables per-operation trace logging on stderr.
`

// logger is the single log.Logger for the whole process (SPEC_FULL.md
// Ambient Stack / Logging); verbose controls whether trace-level Printf
// calls below are silenced.
var (
	logger  = log.New(os.Stderr, "", 0)
	verbose bool
)

func tracef(format string, args ...interface{}) {
	if verbose {
		logger.Printf(format, args...)
	}
}

func main() {
	args := takeGlobalFlags(os.Args[1:])

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "build":
		err = runBuild(rest)
	case "mount":
		err = runMount(rest)
	case "umount":
		err = runUmount(rest)
	case "extract":
		err = runExtract(rest)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// takeGlobalFlags strips "-v" wherever it appears in args and reports the
// remainder, so "-v" works both before and after the subcommand name
// without a flag-parsing library.
func takeGlobalFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "-v" {
			verbose = true
			continue
		}
		out = append(out, a)
	}
	return out
}

func runBuild(args []string) error {
	var baseTag, compression string
	var enableVerity bool
	positional := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-base":
			i++
			if i >= len(args) {
				return fmt.Errorf("-base requires a tag argument")
			}
			baseTag = args[i]
		case "-compression":
			i++
			if i >= len(args) {
				return fmt.Errorf("-compression requires an argument")
			}
			compression = args[i]
		case "-verity":
			enableVerity = true
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) != 3 {
		return fmt.Errorf("build requires SOURCE_DIR OCI_DIR TAG")
	}
	sourceDir, ociDir, tag := positional[0], positional[1], positional[2]

	comp, err := parseCompression(compression)
	if err != nil {
		return err
	}

	bs, err := blobstore.New(ociDir)
	if err != nil {
		return err
	}
	bs.EnableFsVerity = enableVerity

	tracef("building %s -> %s (tag %s, base %q)", sourceDir, ociDir, tag, baseTag)
	desc, err := builder.Build(bs, sourceDir, builder.Options{
		Tag:         tag,
		BaseTag:     baseTag,
		Compression: comp,
	})
	if err != nil {
		return err
	}
	tracef("manifest digest %s (%d bytes)", desc.Digest, desc.Size)
	return nil
}

func parseCompression(name string) (blobstore.Compression, error) {
	switch name {
	case "", "zstd":
		return blobstore.Zstd{}, nil
	case "xz":
		// blobstore.Xz only registers itself under the "xz" build tag
		// (blobstore/xz.go); CompressionForCodec reports InvalidSchema if
		// this binary was built without it.
		return blobstore.CompressionForCodec(metadata.CodecXz)
	case "none":
		return blobstore.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q (want zstd, xz, or none)", name)
	}
}

func runMount(args []string) error {
	var verify string
	positional := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-verify":
			i++
			if i >= len(args) {
				return fmt.Errorf("-verify requires a digest argument")
			}
			verify = args[i]
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) != 3 {
		return fmt.Errorf("mount requires OCI_DIR TAG MOUNTPOINT")
	}
	ociDir, tag, mountpoint := positional[0], positional[1], positional[2]

	bs, err := blobstore.Open(ociDir)
	if err != nil {
		return err
	}
	img, err := reader.Open(bs, tag, verify)
	if err != nil {
		return err
	}

	tracef("mounting %s:%s at %s", ociDir, tag, mountpoint)
	server, err := fuse.Mount(mountpoint, img)
	if err != nil {
		return err
	}

	// Unmount cleanly on interrupt, mirroring original_source/exe's
	// signal_hook TERM-signal handling around the mount loop.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		tracef("received signal, unmounting %s", mountpoint)
		server.Unmount()
	}()

	server.Wait()
	return nil
}

func runUmount(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("umount requires MOUNTPOINT")
	}
	return syscall.Unmount(args[0], 0)
}

func runExtract(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("extract requires OCI_DIR TAG EXTRACT_DIR")
	}
	ociDir, tag, extractDir := args[0], args[1], args[2]

	bs, err := blobstore.Open(ociDir)
	if err != nil {
		return err
	}
	img, err := reader.Open(bs, tag, "")
	if err != nil {
		return err
	}

	tracef("extracting %s:%s -> %s", ociDir, tag, extractDir)
	return extractor.Extract(img, extractDir)
}
