// Package checker implements the reqcheck run: it reads a requirements file,
// reports which packages are already installed and installs the missing ones
// one at a time while showing progress.
package checker
