// Package cli implements the quarry command line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/repo"
	"github.com/quarryvcs/quarry/internal/sandbox"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry is a workspace version control system",
	Long: `Quarry tracks snapshots of a workspace directory: stage files, commit
them, branch, and capture or restore whole-tree workflow checkpoints.`,
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository",
	Long:  "Creates the .quarry control directory in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Init(repo.InitParams{})
		if err != nil {
			return err
		}
		cmd.Printf("Initialized empty quarry repository on branch %s\n", result.Branch)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(checkpointsCmd)
}

// newService builds a service confined to the current working directory.
func newService() (*repo.Service, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	guard, err := sandbox.NewDirGuard(workDir)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return repo.NewService(guard, logger), nil
}
