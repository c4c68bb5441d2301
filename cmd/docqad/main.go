package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/cli/admin"
	"github.com/spf13/cobra"
)

// pipelineEnv are the settings every index-building command reads
var pipelineEnv = []string{
	"DOCQA_DATA_DIRS", "DOCQA_ARTIFACT_PATH", "DOCQA_EMBEDDING_BASE_URL", "DOCQA_EMBEDDING_MODELS",
	"DOCQA_EMBEDDING_TIMEOUT", "DOCQA_REBUILD_TIMEOUT", "DOCQA_UNIDOC_LICENSE_KEY",
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqad",
		Short: "docqa daemon and CLI",
		Long:  "docqa daemon for serving the document QA API and managing the local vector index",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.WithEnv(admin.ServeCmd(), append(pipelineEnv,
		"DOCQA_PORT", "DOCQA_REINDEX_INTERVAL", "DOCQA_WATCH_DOCUMENTS", "DOCQA_SENTRY_DSN", "DOCQA_ENVIRONMENT")...))
	rootCmd.AddCommand(cli.WithEnv(admin.IndexCmd(), pipelineEnv...))
	rootCmd.AddCommand(cli.WithEnv(admin.StatusCmd(), "DOCQA_DATA_DIRS", "DOCQA_ARTIFACT_PATH"))
	rootCmd.AddCommand(cli.WithEnv(admin.AskCmd(), append(pipelineEnv,
		"DOCQA_GROQ_API_KEY", "DOCQA_HF_API_TOKEN", "DOCQA_PROVIDER_TIMEOUT", "DOCQA_SYNONYMS_FILE")...))
	rootCmd.AddCommand(cli.WithEnv(admin.SyncCmd(), "DOCQA_DATA_DIRS", "AWS_S3_BUCKET_NAME", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "DOCQA_S3_ENDPOINT"))

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
