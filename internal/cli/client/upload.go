package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type UploadResponse struct {
	Message           string   `json:"message"`
	UploadedFiles     []string `json:"uploaded_files"`
	ProcessedFiles    []string `json:"processed_files"`
	EmbeddingsCreated bool     `json:"embeddings_created"`
	Chunks            int      `json:"chunks"`
}

func UploadCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Upload PDF documents and reindex",
		Long: `Upload one or more PDF documents. The server reindexes once all files
are saved; if indexing fails none of the files are kept.

Examples:
  docqa upload notes/week1.pdf notes/week2.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(NewAPIClientWithCmd(cmd), args, outputJSON, quiet)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print upload progress")

	return cmd
}

func runUpload(api *APIClient, paths []string, outputJSON, quiet bool) error {
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".pdf") {
			return fmt.Errorf("only PDF files are allowed: %s", p)
		}
	}

	var onProgress ProgressFunc
	if !quiet && !outputJSON {
		onProgress = func(current, total int64) {
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\rUploading... %3d%%", current*100/total)
			}
		}
	}

	resp, err := api.UploadFiles(paths, onProgress)
	if onProgress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var result UploadResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Uploaded %d files (%d chunks indexed)\n", len(result.UploadedFiles), result.Chunks)
	for _, f := range result.UploadedFiles {
		fmt.Printf("  %s\n", f)
	}
	return nil
}
