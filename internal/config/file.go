package config

// Defaults holds default settings loaded from the configuration file.
// Zero values mean the setting is absent and the built-in default
// applies; SaveHistory uses a pointer so an explicit false survives.
type Defaults struct {
	// Separator overrides the stage separator token.
	Separator string `yaml:"separator,omitempty"`

	// MaxStages overrides the stage limit.
	MaxStages int `yaml:"max_stages,omitempty"`

	// DBDir overrides the run history database directory.
	DBDir string `yaml:"db_dir,omitempty"`

	// SaveHistory toggles run history persistence.
	SaveHistory *bool `yaml:"save_history,omitempty"`

	// Report selects the post-run summary format: simple, json, or
	// markdown. Empty means no summary.
	Report string `yaml:"report,omitempty"`
}

// File represents the structure of the .runpipe.yml configuration file.
type File struct {
	// Defaults contains settings applied to every run unless overridden
	// by command-line flags.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Pipelines maps names to saved pipeline token lists, separator
	// tokens included. A saved pipeline runs with
	// `runpipe run --pipeline NAME`.
	Pipelines map[string][]string `yaml:"pipelines,omitempty"`
}

// GetPipeline returns the token list saved under name.
// The second return value reports whether the name exists.
func (cf *File) GetPipeline(name string) ([]string, bool) {
	tokens, ok := cf.Pipelines[name]
	return tokens, ok
}

// ApplyFile merges the file's defaults into the configuration.
// Only settings present in the file are applied; command-line flags
// are applied afterwards by the caller and take precedence.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	c.Pipelines = cf

	if cf.Defaults.Separator != "" {
		c.Separator = cf.Defaults.Separator
	}
	if cf.Defaults.MaxStages > 0 {
		c.MaxStages = cf.Defaults.MaxStages
	}
	if cf.Defaults.DBDir != "" {
		c.DBDir = cf.Defaults.DBDir
	}
	if cf.Defaults.SaveHistory != nil {
		c.SaveHistory = *cf.Defaults.SaveHistory
	}
	if cf.Defaults.Report != "" {
		c.Report = cf.Defaults.Report
	}
}
