package cli

import (
	"github.com/spf13/cobra"
)

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the command and native library versions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app.printf("paddle2onnx %s\n", Version)

			conv, err := app.Open(app.Config, app.Fs, app.Logger)
			if err != nil {
				app.printf("native library: unavailable (%v)\n", err)
				return nil
			}
			defer conv.Close()

			native := conv.Version()
			if native == "" {
				native = "unknown"
			}
			app.printf("native library: %s\n", native)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect paddle2onnx configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Long:  `Print the configuration after merging defaults, the config file, P2O_ environment variables and flags.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.printYAML(app.Config)
		},
	})
	return cmd
}
