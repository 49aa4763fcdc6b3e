// Package configs embeds the default scan configuration shipped with vault.
package configs

import _ "embed"

// DefaultScan is configs/scan.yml, used when no scan.yml is found on disk
//
//go:embed scan.yml
var DefaultScan []byte
