// Package session binds notebook files to running notebook servers and
// talks to the Jupyter REST API on their behalf.
//
// Register maps a file onto a server and computes the URL a web view should
// load. KernelID and ShutdownKernel query and stop the kernel behind a
// notebook. The Dispatcher runs those calls off the caller's goroutine and
// discards results that belong to a server which has since stopped or been
// replaced.
package session
