package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spacesedan/moodjournal/config"
	"github.com/spacesedan/moodjournal/internal/analysis"
	"github.com/spacesedan/moodjournal/internal/clients"
	"github.com/spacesedan/moodjournal/internal/db"
	"github.com/spacesedan/moodjournal/internal/logging"
	"github.com/spacesedan/moodjournal/internal/models"
	"github.com/spf13/cobra"
)

var (
	appEnv         string
	compact        bool
	sourceLanguage string
	cfg            config.Settings
)

// RecordGetter is satisfied by *db.MoodStore.
type RecordGetter interface {
	GetRecord(ctx context.Context, entryID string) (models.MoodAnalysisRecord, bool, error)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Analyze the mood of a journal entry",
		Long:  "Runs a journal entry through translation, sentiment and emotion classification and prints the outcome as JSON. Without arguments the entry is read from stdin.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if appEnv == "" {
				appEnv = "dev"
			}
			config.LoadEnv(appEnv)
			cfg = config.Load()
			logging.InitLogger(cfg.LogLevel)
		},
		SilenceUsage: true,
		RunE:         runAnalyze,
	}

	rootCmd.PersistentFlags().StringVar(&appEnv, "env", os.Getenv("APP_ENV"), "environment file to load from config/envs")
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "print JSON on a single line")
	rootCmd.Flags().StringVar(&sourceLanguage, "source-language", "", "language hint for the entry (detected automatically when empty)")

	rootCmd.AddCommand(newRecommendCmd())
	return rootCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	text, err := readEntry(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	analyzer, _, cleanup := analysis.NewFromSettings(ctx, cfg)
	defer cleanup()

	return writeJSON(cmd.OutOrStdout(), analyzer.AnalyzeRequest(ctx, models.AnalysisRequest{
		Text:           text,
		SourceLanguage: sourceLanguage,
	}))
}

func newRecommendCmd() *cobra.Command {
	var (
		entryID   string
		sentiment string
		emotion   string
		score     float64
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print the recommendation for stored labels without classifying again",
		Long:  "Prints the recommendation for the given labels. With --entry-id the labels are read from the stored analysis of that entry instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if entryID == "" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"recommendation": analysis.Recommend(sentiment, emotion, score),
				})
			}

			ctx := cmd.Context()
			dynamoClient, err := clients.GetDynamoDBClient(ctx, cfg.DynamoDB)
			if err != nil {
				return err
			}
			recommendation, err := recommendForEntry(ctx, db.NewMoodStore(dynamoClient, cfg.DynamoDB.TableName), entryID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"entry_id":       entryID,
				"recommendation": recommendation,
			})
		},
	}

	cmd.Flags().StringVar(&entryID, "entry-id", "", "read the labels from the stored analysis of this entry")
	cmd.Flags().StringVar(&sentiment, "sentiment", "", "stored sentiment label")
	cmd.Flags().StringVar(&emotion, "emotion", "", "stored emotion label")
	cmd.Flags().Float64Var(&score, "score", 0, "stored combined score")
	return cmd
}

// recommendForEntry recomputes the recommendation from the labels stored for
// entryID.
func recommendForEntry(ctx context.Context, store RecordGetter, entryID string) (string, error) {
	record, found, err := store.GetRecord(ctx, entryID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("no mood analysis stored for entry %q", entryID)
	}
	return analysis.Recommend(record.Sentiment, record.Emotion, record.Score), nil
}

func readEntry(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
