package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sharescan/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file populated with default values.

Without --config the file is created at $XDG_CONFIG_HOME/sharescan/config.yaml.

Examples:
  sharescan config init
  sharescan config init --config ./sharescan.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path == "" {
		path, err = config.InitConfig(initForce)
	} else {
		err = config.InitConfigToPath(path, initForce)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}
