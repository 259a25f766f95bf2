package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ifnetns/ifnetns/log"
	"github.com/ifnetns/ifnetns/netns"
	"github.com/ifnetns/ifnetns/resolvd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start [namespace]",
		Short: "Create a namespace with its resolver scaffold and loopback",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return buildManager().Create(namespaceArg(args, 0))
		},
	}
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [namespace]",
		Short: "Remove every assigned interface and destroy the namespace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns := namespaceArg(args, 0)
			res, err := buildManager().Destroy(ns)
			if err != nil {
				return err
			}
			if len(res.Warnings) > 0 {
				log.Warnf("Namespace %s destroyed with %d warnings", ns, len(res.Warnings))
			}
			return nil
		},
	}
}

func newAddCommand() *cobra.Command {
	var script string
	cmd := &cobra.Command{
		Use:   "add <interface> [namespace]",
		Short: "Move an interface into a namespace and run its up hook",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("script") {
				script = viper.GetString("script")
			}
			ns := namespaceArg(args, 1)
			rec, err := buildMover().MoveIn(ns, args[0], script)
			if err != nil {
				return err
			}
			log.Printf("Assigned %s to %s (id %s)", rec.Name, ns, rec.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&script, "script", "", "up/down hook script (default from config)")
	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <interface> [namespace]",
		Short: "Return an interface to the root namespace",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns := namespaceArg(args, 1)
			res, err := buildMover().MoveOut(ns, args[0])
			if err != nil {
				return err
			}
			if len(res.Warnings) > 0 {
				log.Warnf("Removed %s from %s with %d warnings", args[0], ns, len(res.Warnings))
			}
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "run [namespace] -- <command...>",
		Short: "Run a command inside a namespace, optionally as another user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns := viper.GetString("namespace")
			command := args
			if dash := cmd.ArgsLenAtDash(); dash > 0 {
				ns = args[0]
				command = args[dash:]
			}
			if !cmd.Flags().Changed("user") {
				user = viper.GetString("user")
			}
			code, err := buildRunner().Run(ns, user, command)
			if err != nil {
				return err
			}
			if code != 0 {
				return &ExitStatusError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "run as this user (default from config)")
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [namespace]",
		Short: "Show namespaces and their recorded interfaces",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := buildStore()
			names, err := netns.NewNetns().ListNamed()
			if err != nil {
				return err
			}
			for _, ns := range names {
				if len(args) > 0 && ns != args[0] {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ns)
				ifaces, err := st.Interfaces(ns)
				if err != nil {
					log.Warnf("Failed to read records for %s: %v", ns, err)
					continue
				}
				for _, ifName := range ifaces {
					rec, _, err := st.Lookup(ns, ifName)
					if err != nil {
						continue
					}
					line := "  " + rec.Name
					if rec.Phy != "" {
						line += " phy=" + rec.Phy
					}
					if rec.Script != "" {
						line += " script=" + rec.Script
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			return nil
		},
	}
}

func newResolvdCommand() *cobra.Command {
	var kill bool
	cmd := &cobra.Command{
		Use:   "resolvd",
		Short: "Run the resolv.conf repair daemon",
		Long: "Watches the global resolv.conf for deletion or replacement by an " +
			"external network manager and re-establishes the namespace resolver " +
			"bind mounts for every affected process.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			daemon := resolvd.NewDaemon(viper.GetString("lock_file"))
			if kill {
				pid, err := daemon.Kill()
				if err != nil {
					return err
				}
				log.Printf("Signaled pid %d to stop", pid)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&kill, "kill", false, "stop a running daemon instance")
	return cmd
}
