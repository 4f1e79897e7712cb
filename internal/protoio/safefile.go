package protoio

import (
	"strings"
	"unicode/utf8"

	"abpudp/internal/xerr"
)

// safeBasename validates a SYN payload as a destination file basename.
// Grounded on original_source/src/sock.rs's open_file, which accepted
// any UTF-8 string verbatim (a TODO in the source flagged this); this
// module closes that path-traversal gap explicitly.
//
// Rejects: non-UTF-8 bytes, empty names, ".", anything containing a
// path separator ("/" or "\", on every OS) or "..", or a NUL byte. It
// never creates a directory implied by the basename — the caller joins
// the validated name directly under the target directory.
func safeBasename(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", xerr.Input("file_name", "not valid UTF-8")
	}
	name := string(payload)

	if name == "" || name == "." {
		return "", xerr.Input("file_name", "empty or current-directory name")
	}
	if strings.ContainsRune(name, 0) {
		return "", xerr.Input("file_name", "contains NUL byte")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", xerr.Input("file_name", "contains path separator")
	}
	if strings.Contains(name, "..") {
		return "", xerr.Input("file_name", "contains parent-directory reference")
	}
	return name, nil
}
