// Package theme turns the notebook theme preference ("same", "light",
// "dark") into the dark_theme flag passed to new notebook servers.
package theme
