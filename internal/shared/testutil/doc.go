// Package testutil provides fakes shared by package tests: a scripted
// process launcher standing in for the notebook server binary and an
// in-memory Jupyter REST server.
package testutil
