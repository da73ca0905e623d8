package cmd

import (
	"fmt"
	"os"

	"github.com/kallstrom/embermqtt/internal/logging"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// LogLevel is the logrus level name (trace, debug, info, warn, error) the root command sets
// up before any subcommand runs.
var LogLevel string

// RootCmd is the base command every subcommand registers itself under.
var RootCmd = &cobra.Command{
	Use:   "embermqtt",
	Short: "An MQTT 3.1/3.1.1 client core, exercised from the command line",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevelFromName(LogLevel)
	},
}

// Execute runs the root command, printing any error and exiting non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.embermqtt.yaml)")
	RootCmd.PersistentFlags().StringVar(&LogLevel, "log_level", "info", "log level: trace, debug, info, warn, error")
}

// initConfig reads in a config file and environment variables into viper. No flag is bound to
// viper and no command reads a value back from it, so the loaded values change no setting.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.WithError(err).Warn("could not determine home directory for config lookup")
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".embermqtt")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}
}
