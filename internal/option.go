package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
	runID      int64
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigPath sets the file the configuration was loaded from. Serve mode
// watches it for threshold changes.
func WithConfigPath(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

// WithRunID selects the run RebuildModules works on; 0 means the latest run.
func WithRunID(id int64) Option {
	return func(a *application) {
		a.runID = id
	}
}
