// Package installer installs a single package by running an external
// installer (pip by default) as a child process.
package installer
