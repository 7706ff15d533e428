package handlers

import (
	"embed"
	"io/fs"
)

//go:embed templates/ohdear/*.html
var templateFiles embed.FS

// Templates returns the plugin's page templates. Each file is named by its
// path without the .html suffix, e.g. "ohdear/overview".
func Templates() fs.FS {
	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
