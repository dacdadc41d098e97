// Package requirements reads requirements files from disk.
//
// The FileRepository exposes a Repository interface that the checker
// service depends on, so tests can substitute an in-memory list.
package requirements
