// Package cli wires the command tree. Configuration (default namespace, hook
// script, run-as user, state root) is loaded once at startup and immutable
// for the rest of the invocation.
package cli

import (
	"errors"

	"github.com/ifnetns/ifnetns/log"
	"github.com/ifnetns/ifnetns/netio"
	"github.com/ifnetns/ifnetns/netlink"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/network"
	"github.com/ifnetns/ifnetns/platform"
	"github.com/ifnetns/ifnetns/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ifnetns",
		Short:         "Assign network interfaces to named network namespaces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetVerbose(verbose)
			return initConfig()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default /etc/ifnetns/ifnetns.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newStartCommand(),
		newStopCommand(),
		newAddCommand(),
		newRemoveCommand(),
		newRunCommand(),
		newListCommand(),
		newResolvdCommand(),
	)
	return root
}

func initConfig() error {
	viper.SetDefault("namespace", "default")
	viper.SetDefault("script", "")
	viper.SetDefault("user", "")
	viper.SetDefault("state_root", "/run/ifnetns")
	viper.SetDefault("lock_file", "/run/ifnetns/resolvd.pid")

	viper.SetEnvPrefix("ifnetns")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return viper.ReadInConfig()
	}
	viper.SetConfigName("ifnetns")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/ifnetns")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// running without a config file is the common case
	}
	return nil
}

// namespaceArg resolves the optional trailing namespace argument against the
// configured default.
func namespaceArg(args []string, position int) string {
	if len(args) > position {
		return args[position]
	}
	return viper.GetString("namespace")
}

func buildStore() *store.Store {
	return store.New(viper.GetString("state_root"))
}

func buildMover() *network.InterfaceMover {
	return network.NewInterfaceMover(
		netns.NewNetns(),
		netlink.NewNetlink(),
		netio.NewNetIO(),
		platform.NewExecClient(),
		buildStore(),
	)
}

func buildManager() *network.NamespaceManager {
	return network.NewNamespaceManager(
		netns.NewNetns(),
		netlink.NewNetlink(),
		buildStore(),
		buildMover(),
	)
}

func buildRunner() *network.Runner {
	return network.NewRunner(netns.NewNetns(), platform.NewExecClient())
}
