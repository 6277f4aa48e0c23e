//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

func cli(args ...string) error {
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Data rebuilds public/new_bots.json by merging the Word documents
// (pytoncode/update_from_docx.py).
func Data() error {
	mg.Deps(Build)
	return cli("run", "--variant", "merge")
}

// Generate regenerates public/new_bots.json from the metadata document
// (scripts/generate_new_bots_json.py).
func Generate() error {
	mg.Deps(Build)
	return cli("run", "--variant", "generate")
}

// Report summarizes the published catalog JSON.
func Report() error {
	mg.Deps(Build)
	return cli("report")
}
