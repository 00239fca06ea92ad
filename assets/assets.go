// Package assets bundles the sample word lists served when no external
// asset location is configured.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed wordlists
var wordLists embed.FS

// WordLists returns the bundled lists laid out as
// <lang>/index/<LEVEL>_<lang_code>_index.json
func WordLists() fs.FS {
	sub, err := fs.Sub(wordLists, "wordlists")
	if err != nil {
		panic(err)
	}
	return sub
}
