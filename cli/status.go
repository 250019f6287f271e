package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/colors"
	"github.com/quarryvcs/quarry/internal/diff"
	"github.com/quarryvcs/quarry/internal/repo"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the working directory status",
	Long:  "Shows staged changes, unstaged changes, and untracked files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Status(repo.StatusParams{})
		if err != nil {
			return err
		}

		branches, err := svc.Branch(repo.BranchParams{Action: repo.BranchList})
		if err != nil {
			return err
		}
		if branches.Current != "" {
			fmt.Printf("On branch %s\n", colors.Bold(branches.Current))
		} else {
			fmt.Println("HEAD detached")
		}

		if result.Clean {
			fmt.Println(colors.SuccessText("Working directory clean"))
			return nil
		}

		if len(result.Staged) > 0 {
			fmt.Printf("\n%s\n", colors.SectionHeader("Changes staged for commit:"))
			for _, c := range result.Staged {
				printChange(c)
			}
		}
		if len(result.Unstaged) > 0 {
			fmt.Printf("\n%s\n", colors.SectionHeader("Changes not staged:"))
			for _, c := range result.Unstaged {
				printChange(c)
			}
		}
		return nil
	},
}

func printChange(c diff.Change) {
	switch c.Op {
	case diff.OpAdd:
		fmt.Printf("  %s  %s\n", colors.Added("A"), colors.Green(c.Path()))
	case diff.OpModify:
		fmt.Printf("  %s  %s\n", colors.Modified("M"), c.Path())
	case diff.OpDelete:
		fmt.Printf("  %s  %s\n", colors.Deleted("D"), colors.Red(c.Path()))
	default:
		fmt.Printf("     %s\n", c.Path())
	}
}
