package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/spf13/cobra"
)

func loadPipeline(ctx context.Context) (*Pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewPipeline(ctx, cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// IndexCmd returns the index command
func IndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index",
		Long:  "Rebuild the vector index when it is missing or older than the newest PDF. Use --force to rebuild unconditionally.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := loadPipeline(ctx)
			if err != nil {
				return err
			}

			if !force && !p.Index.NeedsRebuild() {
				fmt.Println("Index is up to date.")
				return nil
			}

			result, err := p.Index.Rebuild(ctx)
			if errors.Is(err, domain.ErrNoDocuments) {
				fmt.Printf("No documents found in %s.\n", strings.Join(p.Config.DataDirs, ", "))
				return nil
			}
			if err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}

			fmt.Printf("Indexed %d chunks from %d documents with %s in %s.\n",
				result.Chunks, result.Documents, result.Model, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Rebuild even if the index is fresh")

	return cmd
}

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cmd.Context())
			if err != nil {
				return err
			}

			status, err := p.Index.Status()
			if err != nil {
				return fmt.Errorf("failed to read index: %w", err)
			}

			if outputJSON {
				return printJSON(map[string]interface{}{
					"artifact":   p.Config.ArtifactPath,
					"ready":      status.Ready,
					"stale":      status.Stale,
					"chunks":     status.Chunks,
					"model":      status.Model,
					"created_at": status.CreatedAt,
				})
			}

			fmt.Printf("Artifact: %s\n", p.Config.ArtifactPath)
			if !status.Ready {
				fmt.Println("Ready:    no (run 'docqad index')")
				return nil
			}
			fmt.Println("Ready:    yes")
			fmt.Printf("Stale:    %t\n", status.Stale)
			fmt.Printf("Chunks:   %d\n", status.Chunks)
			fmt.Printf("Model:    %s\n", status.Model)
			fmt.Printf("Built:    %s\n", status.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	return cmd
}

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	var (
		topK       int
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the local index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if topK > 0 {
				cfg.TopK = topK
			}

			p, err := NewPipeline(ctx, cfg)
			if err != nil {
				return err
			}

			out, err := p.QA.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(out)
			}
			printAnswer(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (overrides TOP_K)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	return cmd
}

func printAnswer(out *service.AskOutput) {
	fmt.Println(out.Answer)
	if len(out.Sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for i, s := range out.Sources {
		fmt.Printf("  %d. %s (score %.3f)\n", i+1, s.SourceFile, s.Score)
	}
}

// SyncCmd returns the sync command
func SyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Download every S3 document into the upload directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPipeline(cmd.Context())
			if err != nil {
				return err
			}
			if p.Mirror == nil {
				return fmt.Errorf("S3 is not configured (set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY)")
			}

			names, err := p.Documents.SyncFromRemote(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			fmt.Printf("Downloaded %d documents into %s.\n", len(names), p.Documents.Dir())
			for _, n := range names {
				fmt.Printf("  %s\n", n)
			}
			return nil
		},
	}
}
