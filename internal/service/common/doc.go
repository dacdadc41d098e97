// Package common holds helpers shared by reqcheck services.
//
// It provides the run marker that keeps two runs from mutating one Python
// environment at once, and detection of the current actor (hostname/username)
// for the run log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
