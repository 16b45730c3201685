// Package static embeds the kiosk page.
package static

import (
	"embed"
	"io/fs"
	"path"
	"strings"
)

//go:embed kiosk
var kioskFS embed.FS

// FS returns the kiosk assets rooted at the page directory.
func FS() fs.FS {
	fsys, err := fs.Sub(kioskFS, "kiosk")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Has reports whether urlPath names an embedded file.
func Has(urlPath string) bool {
	name := strings.TrimPrefix(path.Clean(urlPath), "/")
	info, err := fs.Stat(FS(), name)
	return err == nil && !info.IsDir()
}
