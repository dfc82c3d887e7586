package main

import (
	"fmt"
	"io"

	"github.com/dgnsrekt/tribunal-tts/internal/engines"
	"github.com/dgnsrekt/tribunal-tts/internal/voice"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the configured engine",
	Long:    paragraph(fmt.Sprintf("\n%s the voices the engine offers and how they are split into male and female pools.", keyword("List"))),
	Example: paragraph("tribunal voices\ntribunal voices --engine gtts"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, err := engines.New(cfg.EngineConfig())
		if err != nil {
			return fmt.Errorf("unable to create %s engine: %w", cfg.Engine, err)
		}
		return writeVoices(cmd.OutOrStdout(), engine, voice.NewPersonaAssigner(engine.Voices(), cfg.AssignerOptions()...))
	},
}

func writeVoices(w io.Writer, engine engines.Engine, assigner *voice.PersonaAssigner) error {
	status := "ready"
	if err := engine.Validate(); err != nil {
		status = err.Error()
	}
	if _, err := fmt.Fprintf(w, "Engine: %s (%s)\n", engine.Name(), status); err != nil {
		return err //nolint:wrapcheck
	}

	male, female := assigner.Pools()
	for _, pool := range []struct {
		name   string
		voices []voice.Voice
	}{
		{"Male", male},
		{"Female", female},
	} {
		fmt.Fprintf(w, "\n%s voices (%d):\n", pool.name, len(pool.voices)) //nolint:errcheck
		if len(pool.voices) == 0 {
			fmt.Fprintln(w, "  none, the engine default is used") //nolint:errcheck
		}
		for _, v := range pool.voices {
			fmt.Fprintf(w, "  %-24s %-8s %s\n", v.ID, v.Language, v.Name) //nolint:errcheck
		}
	}
	return nil
}
