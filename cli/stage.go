package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/colors"
	"github.com/quarryvcs/quarry/internal/repo"
)

var addCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Stage files for commit",
	Long:  `Stages a file, a directory, a glob pattern, or "." for everything`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Add(repo.AddParams{Pattern: args[0]})
		if err != nil {
			return err
		}
		if len(result.Added) == 0 {
			fmt.Println("Nothing to stage")
			return nil
		}
		for _, path := range result.Added {
			fmt.Printf("  %s  %s\n", colors.Staged("S"), path)
		}
		fmt.Printf("Staged %d file(s)\n", len(result.Added))
		return nil
	},
}

var commitMessage string
var commitAuthor string

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record staged changes as a new commit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Commit(repo.CommitParams{Message: commitMessage, Author: commitAuthor})
		if err != nil {
			return err
		}
		fmt.Printf("Committed %s\n", colors.Yellow(result.Short))
		return nil
	},
}

var rmCached bool

var rmCmd = &cobra.Command{
	Use:   "rm <file>",
	Short: "Remove a file from the index and the working tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Remove(repo.RemoveParams{File: args[0], Cached: rmCached})
		if err != nil {
			return err
		}
		if result.Deleted {
			fmt.Printf("Removed %s\n", result.File)
		} else {
			fmt.Printf("Unstaged %s\n", result.File)
		}
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Move or rename a tracked file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Rename(repo.RenameParams{Src: args[0], Dst: args[1]})
		if err != nil {
			return err
		}
		fmt.Printf("Renamed %s -> %s\n", result.Src, result.Dst)
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message (required)")
	commitCmd.Flags().StringVar(&commitAuthor, "author", "", `override the author, "Name <email>"`)
	commitCmd.MarkFlagRequired("message")

	rmCmd.Flags().BoolVar(&rmCached, "cached", false, "remove from the index only, keep the file on disk")
}
