// Package registry resolves the installed version of a package in the
// target interpreter's environment.
//
// Two implementations are provided. MetadataRegistry scans the
// interpreter's search path for *.dist-info and *.egg-info metadata, the
// same records the interpreter itself consults. PipRegistry asks
// `pip show`. Both return ErrPackageNotFound when nothing matches, which
// callers treat as "needs installing" rather than as a failure.
package registry
