package ociimage_test

import (
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

func writeFile(dir, name, contents string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644)
}

func newDescriptor(d digest.Digest, size int64) v1.Descriptor {
	return v1.Descriptor{
		MediaType: v1.MediaTypeImageManifest,
		Digest:    d,
		Size:      size,
	}
}
