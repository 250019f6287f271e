package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/colors"
	"github.com/quarryvcs/quarry/internal/repo"
)

var logMaxCount int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show commit history",
	Long:  "Walks history from HEAD and prints commits newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Log(repo.LogParams{MaxCount: logMaxCount})
		if err != nil {
			return err
		}
		if len(result.Commits) == 0 {
			fmt.Println("No commits yet")
			return nil
		}
		for i, c := range result.Commits {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%s %s\n", colors.Yellow("commit"), colors.Yellow(c.ID))
			fmt.Printf("Author: %s\n", c.Author)
			fmt.Printf("Date:   %s\n", c.Time.Format("Mon Jan 2 15:04:05 2006 -0700"))
			fmt.Println()
			for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&logMaxCount, "max-count", "n", 0, "limit the number of commits shown")
}
