// Package paths maps editor file paths onto notebook server paths.
//
// Servers address notebooks by forward-slash paths relative to their root
// directory, whatever the host OS. This package is the only place that
// normalizes separators: everything above it compares and stores the
// normalized form.
//
//	rel, err := paths.Relative(`C:\work\nb\sub\a.ipynb`, `C:\work\nb`)
//	// rel == "sub/a.ipynb"
//
//	paths.Contains("/work/nb", "/work/nb2/a.ipynb") // false
package paths
