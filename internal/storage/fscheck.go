package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// FilesystemReport describes where a database path would live.
type FilesystemReport struct {
	Path      string
	Inspected string
	Type      string
	Network   bool
}

// InspectFilesystem reports the filesystem type backing path, looking at the
// nearest ancestor that already exists.
func InspectFilesystem(path string) (FilesystemReport, error) {
	return inspectFilesystemWith(path, detectFilesystemType)
}

func inspectFilesystemWith(path string, detector func(string) (string, error)) (FilesystemReport, error) {
	report := FilesystemReport{Path: path}
	if path == "" {
		return report, fmt.Errorf("sqlite path is empty")
	}

	inspectPath, err := nearestExistingPath(path)
	if err != nil {
		return report, fmt.Errorf("resolve database path %q: %w", path, err)
	}
	report.Inspected = inspectPath

	fsType, err := detector(inspectPath)
	if err != nil {
		return report, fmt.Errorf("detect filesystem for %q: %w", inspectPath, err)
	}
	report.Type = fsType
	report.Network = isNetworkFilesystem(fsType)
	return report, nil
}

// ensureLocalFilesystem rejects database paths on network filesystems, where
// SQLite locking is unreliable. Platforms without detection are allowed.
func ensureLocalFilesystem(path string) error {
	return ensureLocalFilesystemWith(path, detectFilesystemType)
}

func ensureLocalFilesystemWith(path string, detector func(string) (string, error)) error {
	report, err := inspectFilesystemWith(path, detector)
	if err != nil {
		if errors.Is(err, errDetectionUnsupported) {
			return nil
		}
		return err
	}
	if report.Network {
		return fmt.Errorf(
			"database path %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. Set state.path (or ISSUEGATE_DB_PATH) to a local file",
			path,
			report.Type,
		)
	}
	return nil
}

var errDetectionUnsupported = errors.New("filesystem detection is unsupported on this platform")

func nearestExistingPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	candidate := absPath
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", absPath)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	normalized := strings.TrimSpace(strings.ToLower(fsType))
	_, found := networkFilesystems[normalized]
	return found
}
