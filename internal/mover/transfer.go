package mover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"dvrmanager/internal/fileutil"
	"dvrmanager/internal/services"
)

// errDestinationOccupied reports that another writer claimed the planned
// destination between planning and commit. The caller replans.
var errDestinationOccupied = errors.New("destination already exists")

// reserveDestination claims dest with O_EXCL so two workers committing the
// same plan cannot overwrite one another. The returned release removes the
// placeholder; callers skip it once the real file has landed.
func reserveDestination(dest string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "moving", "create destination directory", "Cannot create library directory", err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errDestinationOccupied
		}
		return nil, services.Wrap(services.ErrTransient, "moving", "reserve destination", "Cannot reserve library path", err)
	}
	_ = f.Close()
	return func() { _ = os.Remove(dest) }, nil
}

// transfer moves src to dest, renaming when both live on the same
// filesystem and falling back to a verified copy across devices. The
// destination name is reserved exclusively first; renaming over the
// placeholder is the atomic commit. Returns the method used ("rename" or
// "copy"), or errDestinationOccupied when dest already holds a file.
func (m *Mover) transfer(src, dest string) (string, error) {
	release, err := m.reserve(dest)
	if err != nil {
		return "", err
	}

	err = os.Rename(src, dest)
	if err == nil {
		return "rename", nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, unix.EXDEV) {
		release()
		return "", services.Wrap(services.ErrTransient, "moving", "rename", "Cannot move file into library", err)
	}

	// Cross-device move: copy to a temp sibling so a crash never leaves a
	// half-written file under the final name, then rename into place.
	tmp := dest + ".partial"
	if err := fileutil.CopyFileVerified(src, tmp); err != nil {
		_ = os.Remove(tmp)
		release()
		return "", wrapCopyError(err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		release()
		return "", services.Wrap(services.ErrTransient, "moving", "finalize copy", "Cannot rename copied file into place", err)
	}
	if err := os.Remove(src); err != nil {
		return "", services.Wrap(services.ErrTransient, "moving", "remove source", "Copied into library but cannot remove source", err)
	}
	return "copy", nil
}

// wrapCopyError classifies a failed verified copy: corrupted bytes are a
// verification failure with its own tight retry budget, everything else is
// transient.
func wrapCopyError(err error) error {
	if errors.Is(err, fileutil.ErrChecksumMismatch) {
		return services.Wrap(services.ErrVerification, "moving", "copy", "Copied file failed integrity verification", err)
	}
	return services.Wrap(services.ErrTransient, "moving", "copy", "Cannot copy file across filesystems", err)
}

// preflightFreeSpace refuses a move when the destination filesystem cannot
// hold the file plus the configured headroom.
func (m *Mover) preflightFreeSpace(destDir string, sizeBytes int64) error {
	if m.cfg.Mover.MinFreeSpaceBytes <= 0 && sizeBytes <= 0 {
		return nil
	}

	// The destination directory may not exist yet; statfs the nearest
	// existing ancestor.
	probe := destDir
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(probe, &stat); err != nil {
		return services.Wrap(services.ErrTransient, "moving", "preflight", "Cannot check destination free space", err)
	}

	avail := int64(stat.Bavail) * int64(stat.Bsize)
	need := sizeBytes + m.cfg.Mover.MinFreeSpaceBytes
	if avail < need {
		return services.Wrap(
			services.ErrTransient,
			"moving",
			"preflight",
			fmt.Sprintf("Destination has %d bytes free, need %d", avail, need),
			nil,
		)
	}
	return nil
}

// checksumDestination hashes the landed file for the audit trail.
func checksumDestination(path string) (string, error) {
	return fileutil.ChecksumFile(path)
}
