// Package storage holds helpers shared by the report upload targets.
package storage

import (
	"path"
	"strings"
)

// DefaultPrefix is the object prefix reports are uploaded under.
const DefaultPrefix = "cannonical/"

// ObjectKey joins prefix and the base name of localPath into an object key.
func ObjectKey(prefix, localPath string) string {
	name := path.Base(strings.ReplaceAll(localPath, `\`, "/"))
	prefix = strings.TrimLeft(prefix, "/")
	if prefix == "" {
		return name
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + name
}
