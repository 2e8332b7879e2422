// Package registry is the entry point hosts use to work with notebooks.
//
// It ties the pieces together: a server is started (or reused) for the
// notebook's root, the file is registered against it, and the outcome is
// published on the event bus. The registry also tracks which session has
// focus and shuts every server down on exit.
//
// Example Usage:
//
//	reg := registry.New(servers, client, dispatcher, bus, themes, logger)
//	s, err := reg.Open(ctx, registry.OpenRequest{Filename: "/proj/a.ipynb"})
//	err = reg.Focus(s.ID, true)
//	err = reg.Close(ctx, s.ID, true)
//	reg.Shutdown()
package registry
