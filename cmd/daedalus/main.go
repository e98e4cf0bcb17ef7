// Package main provides the daedalus CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mkarlsen/daedalus/agent"
	"github.com/mkarlsen/daedalus/config"
	"github.com/mkarlsen/daedalus/container"
	"github.com/mkarlsen/daedalus/plugins"
	"github.com/mkarlsen/daedalus/tools"
)

var verbose bool

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "daedalus",
		Short: "Control core for autonomous coding agents",
		Long: `Dispatches tool invocations requested by a model, tracks conversation
state, and detects unproductive repetition (tool-call cycles and streaming
thinking loops).`,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")

	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func toolsCmd() *cobra.Command {
	var agentName string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the function definitions exposed to the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.WithDefaults()
			if err != nil {
				return err
			}
			orch := tools.NewOrchestrator(registry)

			defs := orch.FunctionDefinitions(nil, agentName)
			out, err := json.MarshalIndent(defs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&agentName, "agent", "a", "", "Agent name for visibility filtering")

	return cmd
}

// doctorCmd wires the full service graph, waits for readiness, and tears it
// down again, reporting what it finds.
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify that the service graph resolves and shuts down cleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			logger := newLogger()
			defer func() { _ = logger.Sync() }()

			c := container.New(logger)
			registerServices(c)

			pool, err := c.ResolveRequired(ctx, "agent_pool")
			if err != nil {
				return fmt.Errorf("resolving agent pool: %w", err)
			}
			if err := c.EnsureReady(ctx, "agent_pool"); err != nil {
				return fmt.Errorf("agent pool not ready: %w", err)
			}

			registry, err := c.ResolveRequired(ctx, "tool_manager")
			if err != nil {
				return fmt.Errorf("resolving tool manager: %w", err)
			}

			fmt.Printf("agent_pool: %d sessions\n", pool.(*agent.Pool).Len())
			fmt.Printf("tool_manager: %v\n", registry.(*tools.Registry).Names())

			c.Shutdown(ctx)
			fmt.Println("shutdown clean")
			return nil
		},
	}
}

// registerServices declares the service graph: settings and plugin state as
// leaves, the shared tool registry above them, and the session pool on top.
func registerServices(c *container.Container) {
	c.RegisterSingleton("settings", func(ctx context.Context, deps container.Deps) (any, error) {
		return config.New()
	})

	c.RegisterSingleton("plugin_manager", func(ctx context.Context, deps container.Deps) (any, error) {
		return plugins.NewManager(), nil
	})

	c.RegisterSingleton("tool_manager", func(ctx context.Context, deps container.Deps) (any, error) {
		settings := deps.Get("settings").(config.Settings)
		registry := tools.NewRegistry()
		read := tools.NewReadFileTool(tools.DefaultMaxFileSize).
			WithAllowedPaths(settings.Tools.AllowedPaths)
		if err := registry.Register(read); err != nil {
			return nil, err
		}
		if err := registry.Register(tools.NewSearchFilesTool(tools.DefaultSearchMaxResults)); err != nil {
			return nil, err
		}
		return registry, nil
	}, "settings")

	c.RegisterSingleton("agent_pool", func(ctx context.Context, deps container.Deps) (any, error) {
		settings := deps.Get("settings").(config.Settings)
		registry := deps.Get("tool_manager").(*tools.Registry)
		pluginView := deps.Get("plugin_manager").(*plugins.Manager)
		return agent.NewPool(registry, pluginView, settings, nil), nil
	}, "settings", "tool_manager", "plugin_manager")
}
