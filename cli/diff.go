package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/colors"
	"github.com/quarryvcs/quarry/internal/repo"
)

var diffStaged bool

var diffCmd = &cobra.Command{
	Use:   "diff [file]",
	Short: "Show changed paths",
	Long: `Shows paths changed between the index and the working tree, or with
--staged between HEAD and the index. An optional file argument restricts
the comparison to that path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var file string
		if len(args) == 1 {
			file = args[0]
		}

		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Diff(repo.DiffParams{File: file, Staged: diffStaged})
		if err != nil {
			return err
		}
		if len(result.Changes) == 0 {
			fmt.Println(colors.SuccessText("No changes"))
			return nil
		}
		for _, c := range result.Changes {
			printChange(c)
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffStaged, "staged", false, "compare HEAD against the index")
}
