// Package pathsafe contains the pure path containment logic for run artifacts.
// Resolve is a function of its inputs plus the current filesystem; it keeps
// no caches and no shared state.
package pathsafe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Kind classifies a path safety violation.
type Kind int

const (
	// KindInvalid means the relative path itself is malformed: empty,
	// backslash, absolute anchor, or a dot-dot segment.
	KindInvalid Kind = iota
	// KindEscape means the joined path falls outside the run root.
	KindEscape
	// KindSymlink means an ancestor component of the target is a symlink.
	KindSymlink
)

// String returns the violation kind as a short token.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindEscape:
		return "escape"
	case KindSymlink:
		return "symlink"
	}
	return "unknown"
}

// Error is a path safety violation. Violations are fatal for the operation
// that triggered them and are never retried.
type Error struct {
	Kind   Kind
	Rel    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unsafe artifact path %q: %s (%s)", e.Rel, e.Reason, e.Kind)
}

// Resolve joins a POSIX-style relative artifact path to runRoot and returns
// the absolute target path, or an *Error when the path is malformed, escapes
// the root, or traverses a symlinked ancestor.
//
// The symlink walk covers every existing component between runRoot and the
// target, so a symlinked parent directory is rejected even when the target
// file does not exist yet.
func Resolve(runRoot, relative string) (string, error) {
	segments, err := splitRelative(relative)
	if err != nil {
		return "", err
	}

	rootAbs, absErr := filepath.Abs(runRoot)
	if absErr != nil {
		return "", fmt.Errorf("failed to absolutize run root: %w", absErr)
	}

	target := filepath.Join(rootAbs, filepath.Join(segments...))
	if target != rootAbs && !strings.HasPrefix(target, rootAbs+string(filepath.Separator)) {
		return "", &Error{Kind: KindEscape, Rel: relative, Reason: "resolved path leaves run root"}
	}

	if err := rejectSymlinkAncestors(rootAbs, segments, relative); err != nil {
		return "", err
	}

	return target, nil
}

// OpenRead opens a resolved artifact path for reading, refusing to follow a
// symlink at the final component.
func OpenRead(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if isELOOP(err) {
			return nil, &Error{Kind: KindSymlink, Rel: path, Reason: "final component is a symlink"}
		}
		return nil, err
	}
	return f, nil
}

// splitRelative parses a POSIX-style relative path into its meaningful
// segments, rejecting anything that could anchor or traverse upward.
func splitRelative(relative string) ([]string, error) {
	if relative == "" {
		return nil, &Error{Kind: KindInvalid, Rel: relative, Reason: "empty path"}
	}
	if strings.Contains(relative, "\\") {
		return nil, &Error{Kind: KindInvalid, Rel: relative, Reason: "backslash in path"}
	}
	if strings.HasPrefix(relative, "/") || filepath.IsAbs(relative) {
		return nil, &Error{Kind: KindInvalid, Rel: relative, Reason: "absolute path"}
	}

	var segments []string
	for _, seg := range strings.Split(relative, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			return nil, &Error{Kind: KindInvalid, Rel: relative, Reason: "dot-dot segment"}
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, &Error{Kind: KindInvalid, Rel: relative, Reason: "empty path after normalization"}
	}
	return segments, nil
}

// rejectSymlinkAncestors lstat-checks each existing component from the run
// root anchor down to the target, including the final component.
func rejectSymlinkAncestors(rootAbs string, segments []string, relative string) error {
	current := rootAbs
	for _, seg := range segments {
		current = filepath.Join(current, seg)
		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				// Nothing deeper can exist either.
				return nil
			}
			return fmt.Errorf("failed to lstat %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return &Error{Kind: KindSymlink, Rel: relative, Reason: fmt.Sprintf("component %s is a symlink", seg)}
		}
	}
	return nil
}

func isELOOP(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err == syscall.ELOOP
	}
	return false
}
