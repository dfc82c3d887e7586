package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# Speech settings
tts:
  # speech engine: piper, gtts or mock
  engine: "piper"
  # only voices whose language starts with this prefix are assigned
  language: "es"

  piper:
    binary: "piper"
    # model: "~/.local/share/piper/es_ES-davefx-medium.onnx"
    timeout: "30s"

  gtts:
    language: "es"
    # the Google Translate host changes the accent, e.g. "com.mx" or "es"
    tld: "com"
    slow: false
    requests_per_minute: 50

  cache:
    disabled: false
    # dir: "~/.cache/tribunal"
    # sizes in MB
    memory_size: 64
    max_size: 100
    compression_level: 3
    ttl: "168h"

  player:
    volume: 1.0
    sample_rate: 44100

  # recurring speakers, matched by case-insensitive substring
  personas:
    - match: "castillo"
      pitch: 0.6
      rate: 1.05
    - match: "varela"
      pitch: 0.9
      rate: 1.15
    - match: "rossi"
      female: true
      pitch: 1.2
      rate: 1.2

# glamour style for the current segment (default "auto")
style: "auto"
# word-wrap the current segment at width
width: 80
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the tribunal config file",
	Long:    paragraph(fmt.Sprintf("\n%s the tribunal config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("tribunal config\ntribunal config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Tribunal", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
