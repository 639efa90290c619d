package artifact

import "os"

// Size thresholds for produced artifacts. Exported event-log and archive
// files carry a fixed header, so anything under 1 KiB is an empty export;
// free-form text and XML artifacts only need to be non-empty.
const (
	MinExportBytes int64 = 1024
	MinTextBytes   int64 = 1
)

// Validate reports whether the file at path exists and, if so, whether it
// meets the minimum size. Absence is a normal false result, never an error,
// and a directory at path counts as absent.
func Validate(path string, minSizeBytes int64) (exists bool, sizeOK bool) {
	if path == "" {
		return false, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, false
	}
	return true, info.Size() >= minSizeBytes
}

// Size returns the on-disk size of path, or zero if it cannot be statted.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
