// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"net/http"
)

// DoerFunc adapts a function to the writer's HTTP client seam.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// WriteFunc adapts a function to io.Writer.
type WriteFunc func(p []byte) (int, error)

// Write calls f(p).
func (f WriteFunc) Write(p []byte) (int, error) {
	return f(p)
}

var _ io.Writer = WriteFunc(nil)
