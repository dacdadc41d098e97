// Package config defines reqcheck settings and provides helpers to load,
// validate and save them in YAML format.
//
// Missing fields fall back to defaults: requirements.txt, the active
// virtualenv's interpreter (or python3 on PATH) and a quiet pip install.
package config
