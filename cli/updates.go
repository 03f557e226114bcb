package cli

import (
	"github.com/0x6flab/namegenerator"
	"github.com/spf13/cobra"
)

var (
	namegen  = namegenerator.NewGenerator()
	clientID string
)

func NewUpdatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [submit]",
		Short: "Client updates",
		Long:  `Submit local model updates to the coordinator.`,
	}

	submitCmd := &cobra.Command{
		Use:   "submit <weights_file>",
		Short: "Submit update",
		Long: `Submit a client's local weights for the next aggregation round.

Examples:
  # Submit as a named client
  fl-cli update submit weights.json --client-id device-42

  # Submit with a generated client id
  fl-cli update submit weights.json`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			weights, err := readWeights(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			id := clientID
			if id == "" {
				id = namegen.Generate()
			}

			res, err := flsdk.SubmitUpdate(id, weights)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	submitCmd.Flags().StringVarP(
		&clientID,
		"client-id",
		"c",
		"",
		"Client ID (generated when empty)",
	)

	cmd.AddCommand(submitCmd)

	return cmd
}
