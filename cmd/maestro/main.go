package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalfuse/maestro-ng/pkg/audit"
	"github.com/signalfuse/maestro-ng/pkg/config"
	"github.com/signalfuse/maestro-ng/pkg/conductor"
	"github.com/signalfuse/maestro-ng/pkg/dockerclient"
	"github.com/signalfuse/maestro-ng/pkg/log"
	"github.com/signalfuse/maestro-ng/pkg/planner"
	"github.com/signalfuse/maestro-ng/pkg/plays"
	"github.com/signalfuse/maestro-ng/pkg/probe"
	"github.com/signalfuse/maestro-ng/pkg/termoutput"
	"github.com/signalfuse/maestro-ng/pkg/types"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "maestro",
	Short:   "Orchestrate Docker containers across a fleet of ships",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("maestro version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().StringP("environment", "f", "", "Environment description YAML file (required)")
	rootCmd.PersistentFlags().IntP("parallelism", "p", 0, "Number of containers to act on concurrently (0 = one per container, unbounded)")
	rootCmd.PersistentFlags().BoolP("with-dependencies", "d", false, "Include dependency/dependent services in the selection")
	rootCmd.PersistentFlags().String("ship", "", "Restrict the selection to ships matching this glob")
	rootCmd.PersistentFlags().String("container", "", "Restrict the selection to containers matching this glob")
	rootCmd.PersistentFlags().String("containerd-address", "/run/containerd/containerd.sock", "containerd control socket")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(statusCmd, fullStatusCmd, pullCmd, startCmd, stopCmd, killCmd,
		restartCmd, cleanCmd, logsCmd, depTreeCmd, dumpCmd, completeCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	asJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: asJSON})
}

// buildConductor loads the environment description named by --environment
// and wires a Conductor with one containerd-backed Docker client per
// ship, per spec.md §9 "Per-ship Docker client sharing".
func buildConductor(cmd *cobra.Command) (*conductor.Conductor, func(), error) {
	envFile, _ := cmd.Flags().GetString("environment")
	if envFile == "" {
		return nil, nil, types.NewParameterError("--environment is required")
	}
	data, err := os.ReadFile(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", envFile, err)
	}
	doc, err := config.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	env, err := conductor.Build(doc)
	if err != nil {
		return nil, nil, err
	}

	addr, _ := cmd.Flags().GetString("containerd-address")

	built := plays.ClientMap{}
	var closers []func()
	for name, ship := range env.Ships {
		c, err := dockerclient.NewContainerdClient(ship, addr)
		if err != nil {
			for _, closeFn := range closers {
				closeFn()
			}
			return nil, nil, fmt.Errorf("connecting to ship %s: %w", name, err)
		}
		built[name] = c
		closers = append(closers, c.Close)
	}

	parallelism, _ := cmd.Flags().GetInt("parallelism")

	cd := &conductor.Conductor{
		Env:         env,
		Clients:     built,
		Auditor:     audit.LogAuditor{},
		Probes:      &probe.Factory{},
		Sink:        termoutput.New(os.Stdout, nil),
		Parallelism: parallelism,
	}

	cleanup := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	return cd, cleanup, nil
}

func selectOptions(cmd *cobra.Command, args []string) conductor.SelectOptions {
	shipFilter, _ := cmd.Flags().GetString("ship")
	containerFilter, _ := cmd.Flags().GetString("container")
	withDeps, _ := cmd.Flags().GetBool("with-dependencies")
	return conductor.SelectOptions{
		Things:           args,
		WithDependencies: withDeps,
		ShipFilter:       shipFilter,
		ContainerFilter:  containerFilter,
	}
}

var statusCmd = &cobra.Command{
	Use:   "status [things...]",
	Short: "Report the status of containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		results, err := cd.Status(context.Background(), selectOptions(cmd, args))
		for _, r := range results {
			state := "down"
			if r.Status.Running {
				state = "up"
			}
			if r.Err != nil {
				state = "host down: " + r.Err.Error()
			}
			fmt.Printf("%-30s %s\n", r.Container.Name, state)
		}
		return err
	},
}

var fullStatusCmd = &cobra.Command{
	Use:   "full-status [things...]",
	Short: "Report status and readiness of containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		results, err := cd.FullStatus(context.Background(), selectOptions(cmd, args))
		for _, r := range results {
			state := "down"
			if r.Status.Running {
				state = "up"
				if r.Ready {
					state += ", ready"
				} else {
					state += ", not ready"
				}
			}
			fmt.Printf("%-30s %s\n", r.Container.Name, state)
		}
		return err
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull [things...]",
	Short: "Pull container images",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return cd.Pull(context.Background(), selectOptions(cmd, args))
	},
}

var startCmd = &cobra.Command{
	Use:   "start [things...]",
	Short: "Start containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		refresh, _ := cmd.Flags().GetBool("refresh-images")
		return cd.Start(context.Background(), selectOptions(cmd, args), conductor.StartRunOptions{RefreshImages: refresh})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [things...]",
	Short: "Stop containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return cd.Stop(context.Background(), selectOptions(cmd, args))
	},
}

var killCmd = &cobra.Command{
	Use:   "kill [things...]",
	Short: "Kill containers immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return cd.Kill(context.Background(), selectOptions(cmd, args))
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart [things...]",
	Short: "Restart containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		onlyIfChanged, _ := cmd.Flags().GetBool("only-if-changed")
		reuse, _ := cmd.Flags().GetBool("reuse")
		refresh, _ := cmd.Flags().GetBool("refresh-images")
		return cd.Restart(context.Background(), selectOptions(cmd, args), conductor.RestartRunOptions{
			OnlyIfChanged: onlyIfChanged,
			Reuse:         reuse,
			RefreshImages: refresh,
		})
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean [things...]",
	Short: "Remove stopped containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		return cd.Clean(context.Background(), selectOptions(cmd, args))
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <container>",
	Short: "Show a single container's logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		follow, _ := cmd.Flags().GetBool("follow")
		n, _ := cmd.Flags().GetInt("lines")
		return cd.Logs(context.Background(), selectOptions(cmd, args), follow, n, os.Stdout)
	},
}

var depTreeCmd = &cobra.Command{
	Use:   "deptree [services...]",
	Short: "Print the service dependency tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		recursive, _ := cmd.Flags().GetBool("recursive")
		return cd.DepTree(os.Stdout, args, recursive)
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump [things...]",
	Short: "Print the containers a selection resolves to, without acting on them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		names, err := cd.Dump(selectOptions(cmd, args), planner.Forward)
		for _, name := range names {
			fmt.Println(name)
		}
		return err
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "List every container and service name, for shell completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		cd, cleanup, err := buildConductor(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		for _, name := range cd.Complete() {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	startCmd.Flags().Bool("refresh-images", false, "Always re-pull the image, even if present locally")
	restartCmd.Flags().Bool("refresh-images", false, "Always re-pull the image, even if present locally")
	restartCmd.Flags().Bool("only-if-changed", false, "Only restart containers whose image has changed")
	restartCmd.Flags().Bool("reuse", false, "Leave already-running containers in place instead of recreating them")
	logsCmd.Flags().Bool("follow", false, "Follow a running container's output")
	logsCmd.Flags().Int("lines", 100, "Number of trailing lines to show when not following")
	depTreeCmd.Flags().Bool("recursive", false, "Expand a service's dependencies every time it recurs in the tree")
}
