package types

import "time"

// Variant names the conversion flavour a build runs.
type Variant string

const (
	// VariantMerge re-reads the Word document and merges updates into the
	// existing catalog (pytoncode/update_from_docx.py).
	VariantMerge Variant = "merge"

	// VariantGenerate regenerates the catalog from the metadata document
	// (scripts/generate_new_bots_json.py).
	VariantGenerate Variant = "generate"
)

// DefaultListField is the top-level key holding the catalog's package list.
const DefaultListField = "packages"

// VariantConfig holds the paths one build variant works with. All paths are
// relative to BuildConfig.Root unless absolute.
type VariantConfig struct {
	// Script is the conversion script passed to the interpreter.
	Script string `json:"script" yaml:"script" mapstructure:"script"`

	// Output is the file the script is expected to write.
	Output string `json:"output" yaml:"output" mapstructure:"output"`

	// Destination is the published artifact inside the static asset directory.
	Destination string `json:"destination" yaml:"destination" mapstructure:"destination"`

	// ListField is the key that must hold a non-empty list of records.
	ListField string `json:"list_field" yaml:"list_field" mapstructure:"list_field"`

	// Watch lists files or directories that trigger a rebuild in watch mode.
	Watch []string `json:"watch" yaml:"watch" mapstructure:"watch"`
}

// BuildConfig holds settings for a data build run.
type BuildConfig struct {
	// Root is the repository root; the interpreter runs with it as working directory.
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Variant selects which entry of Variants to run.
	Variant Variant `json:"variant" yaml:"variant" mapstructure:"variant"`

	// Interpreters overrides the platform-default candidate list when non-empty.
	Interpreters []string `json:"interpreters,omitempty" yaml:"interpreters,omitempty" mapstructure:"interpreters"`

	// Timeout bounds each interpreter attempt. Zero means no timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// StateDir holds the build lock and the run history database.
	StateDir string `json:"state_dir" yaml:"state_dir" mapstructure:"state_dir"`

	// History enables the run history ledger.
	History bool `json:"history" yaml:"history" mapstructure:"history"`

	// Variants maps each variant name to its paths.
	Variants map[Variant]VariantConfig `json:"variants" yaml:"variants" mapstructure:"variants"`
}

// DefaultVariants returns the paths used by the web front end repository.
func DefaultVariants() map[Variant]VariantConfig {
	return map[Variant]VariantConfig{
		VariantMerge: {
			Script:      "pytoncode/update_from_docx.py",
			Output:      "public/new_bots.json",
			Destination: "public/new_bots.json",
			ListField:   DefaultListField,
			Watch:       []string{"pytoncode"},
		},
		VariantGenerate: {
			Script:      "scripts/generate_new_bots_json.py",
			Output:      "public/new_bots.json",
			Destination: "public/new_bots.json",
			ListField:   DefaultListField,
			Watch:       []string{"pytoncode/metadata_doc.docx"},
		},
	}
}

// DefaultBuildConfig returns a BuildConfig rooted at root with default
// variants, state directory and history enabled.
func DefaultBuildConfig(root string) BuildConfig {
	return BuildConfig{
		Root:     root,
		Variant:  VariantMerge,
		StateDir: ".catalog-data",
		History:  true,
		Variants: DefaultVariants(),
	}
}

// Selected returns the configuration of the selected variant, with an empty
// ListField defaulted to DefaultListField. ok is false for unknown variants.
func (c BuildConfig) Selected() (VariantConfig, bool) {
	v, ok := c.Variants[c.Variant]
	if !ok {
		return VariantConfig{}, false
	}
	if v.ListField == "" {
		v.ListField = DefaultListField
	}
	return v, true
}
