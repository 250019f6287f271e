package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/colors"
	"github.com/quarryvcs/quarry/internal/repo"
	"github.com/quarryvcs/quarry/internal/worktree"
)

var branchDelete bool
var branchSwitch bool

var branchCmd = &cobra.Command{
	Use:   "branch [name]",
	Short: "List, create, or delete branches",
	Long: `With no arguments, lists branches. With a name, creates the branch at
the current commit. Use --delete to remove a branch and --checkout to
switch to the new branch immediately.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			if branchDelete {
				return fmt.Errorf("--delete requires a branch name")
			}
			result, err := svc.Branch(repo.BranchParams{Action: repo.BranchList})
			if err != nil {
				return err
			}
			for _, b := range result.Branches {
				marker := " "
				name := b.Name
				if b.Current {
					marker = "*"
					name = colors.Green(name)
				}
				fmt.Printf("%s %s %s\n", marker, name, colors.Dim(b.Commit.Short()))
			}
			return nil
		}

		name := args[0]
		action := repo.BranchCreate
		if branchDelete {
			action = repo.BranchDelete
		}
		result, err := svc.Branch(repo.BranchParams{
			Action:   action,
			Name:     name,
			Checkout: branchSwitch,
		})
		if err != nil {
			return err
		}
		switch action {
		case repo.BranchDelete:
			fmt.Printf("Deleted branch %s\n", result.Name)
		default:
			if branchSwitch {
				fmt.Printf("Created and switched to branch %s\n", colors.Green(result.Name))
				printReport(result.Report)
			} else {
				fmt.Printf("Created branch %s\n", result.Name)
			}
		}
		return nil
	},
}

var checkoutFile string
var checkoutCreate bool

var checkoutCmd = &cobra.Command{
	Use:   "checkout [branch]",
	Short: "Switch branches or restore a file from HEAD",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var branch string
		if len(args) == 1 {
			branch = args[0]
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Checkout(repo.CheckoutParams{Branch: branch, File: checkoutFile, Create: checkoutCreate})
		if err != nil {
			return err
		}
		if result.File != "" {
			fmt.Printf("Restored %s (%d bytes)\n", result.File, result.Bytes)
			return nil
		}
		fmt.Printf("Switched to branch %s at %s\n", colors.Green(result.Branch), colors.Dim(result.Commit))
		printReport(result.Report)
		return nil
	},
}

func printReport(r *worktree.Report) {
	if r == nil {
		return
	}
	if len(r.Written) > 0 || len(r.Deleted) > 0 {
		fmt.Printf("%d file(s) written, %d removed\n", len(r.Written), len(r.Deleted))
	}
	for _, f := range r.Failed {
		fmt.Printf("%s %s: %v\n", colors.ErrorText("failed:"), f.Path, f.Err)
	}
}

func init() {
	branchCmd.Flags().BoolVarP(&branchDelete, "delete", "d", false, "delete the named branch")
	branchCmd.Flags().BoolVarP(&branchSwitch, "checkout", "c", false, "switch to the branch after creating it")
	checkoutCmd.Flags().StringVar(&checkoutFile, "file", "", "restore one file from HEAD instead of switching branches")
	checkoutCmd.Flags().BoolVarP(&checkoutCreate, "create", "b", false, "create the branch at HEAD if it does not exist")
}
