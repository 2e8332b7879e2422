// Package http exposes the notebook registry over a JSON control API.
//
// Every response carries a "success" flag; failures add an "error" string
// and use a status code derived from the domain error.
package http
