package cli

// Config holds the global flags, so that a CLI carries no package state
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	Version     string
}

// NewConfig creates a CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Version:     "dev",
	}
}
