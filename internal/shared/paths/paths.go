package paths

import (
	"fmt"
	"path"
	"strings"
)

// MappingError reports a file that does not live under a server root.
type MappingError struct {
	Filename string
	RootDir  string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("file %q is not under server root %q", e.Filename, e.RootDir)
}

// Relative returns filename relative to rootDir using forward slashes.
//
// The result never has a leading separator. Files outside rootDir, and rootDir
// itself, yield a *MappingError.
func Relative(filename, rootDir string) (string, error) {
	file := Normalize(filename)
	root := Normalize(rootDir)

	if file == "" || root == "" {
		return "", &MappingError{Filename: filename, RootDir: rootDir}
	}

	prefix := root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	if !hasPrefixFold(file, prefix) {
		return "", &MappingError{Filename: filename, RootDir: rootDir}
	}

	rel := strings.TrimLeft(file[len(prefix):], "/")
	if rel == "" {
		return "", &MappingError{Filename: filename, RootDir: rootDir}
	}
	return rel, nil
}

// Join re-joins a relative path produced by Relative onto rootDir.
func Join(rootDir, rel string) string {
	return path.Join(Normalize(rootDir), Normalize(rel))
}

// Normalize converts p to a cleaned forward-slash path.
// Backslashes are treated as separators so Windows paths map the same way on
// every host.
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean(p)
}

// Contains reports whether filename is strictly under rootDir.
func Contains(rootDir, filename string) bool {
	_, err := Relative(filename, rootDir)
	return err == nil
}

// hasPrefixFold compares drive letters case-insensitively ("C:/" vs "c:/").
func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	if isDrivePath(prefix) && isDrivePath(s) {
		return strings.EqualFold(s[:2], prefix[:2]) && s[2:len(prefix)] == prefix[2:]
	}
	return s[:len(prefix)] == prefix
}

func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
