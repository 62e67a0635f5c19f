//go:build !linux

package blobstore

import (
	"os"

	"github.com/puzzlefs/puzzlefs-go/errs"
	"github.com/puzzlefs/puzzlefs-go/metadata"
)

// EnableVerity is unsupported outside Linux; fs-verity is a Linux-only
// kernel feature.
func EnableVerity(f *os.File) error {
	return errs.New(errs.IO, "fs-verity is not supported on this platform")
}

// MeasureVerity is unsupported outside Linux.
func MeasureVerity(f *os.File) (metadata.VerityDigest, error) {
	return metadata.VerityDigest{}, errs.New(errs.IO, "fs-verity is not supported on this platform")
}
