// Package filesystem discovers notebooks on disk.
//
// FindNotebooks walks a server root in parallel (fastwalk), matches the
// forward-slash relative path of each file against a doublestar pattern,
// and skips hidden directories and Jupyter checkpoint folders. With
// Inspect set, files are sniffed (mimetype) and anything that is not JSON
// is dropped.
//
// Example Usage:
//
//	notebooks, err := filesystem.FindNotebooks(ctx, root, filesystem.FindOptions{})
//	notebooks, err = filesystem.FindNotebooks(ctx, root, filesystem.FindOptions{Pattern: "reports/**/*.ipynb"})
package filesystem
