package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse     bool

	// Name of the loaded source, shown in the status bar.
	Name string
	// Path of a local transcript. Required for Watch.
	Path string
	// Watch re-submits the transcript when Path changes on disk.
	Watch bool
	// Engine is shown in the status bar.
	Engine string

	// For debugging the UI
	GlamourEnabled bool `env:"TRIBUNAL_ENABLE_GLAMOUR" envDefault:"true"`
}
