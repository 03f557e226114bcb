package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/fedmodel/pkg/mqtt"
	"github.com/absmach/fedmodel/pkg/sdk"
	"github.com/spf13/cobra"
)

var errMissingChannel = errors.New("domain id and channel id are required")

var (
	format string

	mqttAddress  = "tcp://localhost:1883"
	mqttUsername string
	mqttPassword string
	domainID     string
	channelID    string
)

func NewModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model [manifest|download|seed|versions|watch]",
		Short: "Global model",
		Long:  `Inspect, download, seed and watch the global model.`,
	}

	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "View manifest",
		Long:  `View the current model version, content hash and size.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			m, err := flsdk.Manifest()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	downloadCmd := &cobra.Command{
		Use:   "download <output_file>",
		Short: "Download model",
		Long: `Download the current model and verify its content hash.

Examples:
  # Download the inference artifact
  fl-cli model download model.fp16

  # Download the training checkpoint
  fl-cli model download model.ckpt --format training`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			model, err := flsdk.DownloadModel(format)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if err := os.WriteFile(args[0], model.Data, 0o644); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]any{
				"version":      model.Version,
				"format":       model.Format,
				"content_hash": model.ContentHash,
				"size_bytes":   len(model.Data),
				"path":         args[0],
			})
		},
	}

	downloadCmd.Flags().StringVarP(
		&format,
		"format",
		"f",
		sdk.FormatInference,
		"Artifact format (inference or training)",
	)

	seedCmd := &cobra.Command{
		Use:   "seed <weights_file>",
		Short: "Seed model",
		Long:  `Publish the initial model as version 0.`,
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

			m, err := flsdk.Seed(weights)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, m)
		},
	}

	versionsCmd := &cobra.Command{
		Use:   "versions",
		Short: "List artifacts",
		Long:  `List every published artifact, oldest first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := flsdk.ListArtifacts(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	versionsCmd.Flags().Uint64VarP(&defOffset, "offset", "o", defOffset, "Offset")
	versionsCmd.Flags().Uint64VarP(&defLimit, "limit", "l", defLimit, "Limit")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch model announcements",
		Long:  `Subscribe to model announcements over MQTT and print each new manifest.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			if domainID == "" || channelID == "" {
				logErrorCmd(*cmd, errMissingChannel)

				return
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := watch(ctx, cmd); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	watchCmd.Flags().StringVar(&mqttAddress, "mqtt-address", mqttAddress, "MQTT broker address")
	watchCmd.Flags().StringVar(&mqttUsername, "mqtt-username", "", "MQTT username")
	watchCmd.Flags().StringVar(&mqttPassword, "mqtt-password", "", "MQTT password")
	watchCmd.Flags().StringVar(&domainID, "domain-id", "", "Domain ID")
	watchCmd.Flags().StringVar(&channelID, "channel-id", "", "Channel ID")

	cmd.AddCommand(manifestCmd)
	cmd.AddCommand(downloadCmd)
	cmd.AddCommand(seedCmd)
	cmd.AddCommand(versionsCmd)
	cmd.AddCommand(watchCmd)

	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Watchers register no last will; only the coordinator announces liveness.
	ps, err := mqtt.NewPubSub(mqttAddress, 1, "fl-cli-"+namegen.Generate(), mqttUsername, mqttPassword, "", "", 30*time.Second, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = ps.Disconnect(context.Background())
	}()

	topic := mqtt.ModelTopic(domainID, channelID)
	if err := ps.Subscribe(ctx, topic, func(_ string, msg map[string]any) error {
		logJSONCmd(*cmd, msg)

		return nil
	}); err != nil {
		return err
	}
	<-ctx.Done()

	return ps.Unsubscribe(context.Background(), topic)
}
