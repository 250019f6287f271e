package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryvcs/quarry/internal/colors"
	"github.com/quarryvcs/quarry/internal/repo"
)

var checkpointMessage string
var checkpointBound int

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Snapshot the whole working tree as a checkpoint commit",
	Long: `Stages every file and records a checkpoint commit. If nothing changed
since the last commit, the existing commit id is reported instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		params := repo.CheckpointParams{Message: checkpointMessage}
		if cmd.Flags().Changed("bound-index") {
			params.BoundIndex = &checkpointBound
		}
		result, err := svc.Checkpoint(params)
		if err != nil {
			return err
		}
		if result.Created {
			fmt.Printf("Checkpoint %s created\n", colors.Yellow(result.Short))
		} else {
			fmt.Printf("No changes; checkpoint is %s\n", colors.Yellow(result.Short))
		}
		return nil
	},
}

var restoreKeepExtra bool

var restoreCmd = &cobra.Command{
	Use:   "restore <checkpoint-id>",
	Short: "Restore the working tree to a checkpoint",
	Long: `Detaches HEAD at the given commit and rewrites the working tree to
match its snapshot. Files not present in the snapshot are removed unless
--keep-extra is given. Short ids are accepted when unambiguous.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.Restore(repo.RestoreParams{
			CheckpointID: args[0],
			KeepExtra:    restoreKeepExtra,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Restored checkpoint %s\n", colors.Yellow(result.Short))
		printReport(result.Report)
		return nil
	},
}

var checkpointsLimit int

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List workflow checkpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		result, err := svc.ListCheckpoints(repo.ListCheckpointsParams{Limit: checkpointsLimit})
		if err != nil {
			return err
		}
		if len(result.Checkpoints) == 0 {
			fmt.Println("No checkpoints")
			return nil
		}
		for _, c := range result.Checkpoints {
			line := fmt.Sprintf("%s  %s  %s",
				colors.Yellow(c.Short),
				c.Time.Format("2006-01-02 15:04:05"),
				c.Message)
			if c.BoundIndex != nil {
				line += colors.Dim(fmt.Sprintf("  [message_index=%d]", *c.BoundIndex))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	checkpointCmd.Flags().StringVarP(&checkpointMessage, "message", "m", "", "checkpoint description")
	checkpointCmd.Flags().IntVar(&checkpointBound, "bound-index", 0, "bind the checkpoint to an external sequence number")

	restoreCmd.Flags().BoolVar(&restoreKeepExtra, "keep-extra", false, "keep files that are absent from the checkpoint")

	checkpointsCmd.Flags().IntVarP(&checkpointsLimit, "limit", "n", 0, "limit the number of checkpoints shown")
}
