package client

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

type File struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Uploaded float64 `json:"uploaded"`
}

type FilesResponse struct {
	Files []File `json:"files"`
}

func FilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runFiles(NewAPIClientWithCmd(cmd), outputJSON)
		},
	}
}

func runFiles(api *APIClient, outputJSON bool) error {
	resp, err := api.Get("/files")
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	var files FilesResponse
	if err := json.Unmarshal(resp.Data, &files); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(files.Files, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(files.Files) == 0 {
		fmt.Println("No documents uploaded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tUPLOADED")
	for _, f := range files.Files {
		uploaded := time.Unix(0, int64(f.Uploaded*float64(time.Second))).Format(time.RFC3339)
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, formatSize(f.Size), uploaded)
	}
	return w.Flush()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <filename>...",
		Short: "Delete uploaded documents and reindex",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(NewAPIClientWithCmd(cmd), args)
		},
	}
}

func runDelete(api *APIClient, names []string) error {
	var failed int
	for _, name := range names {
		if _, err := api.Delete(FilePath(name)); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("Deleted %s\n", name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(names))
	}
	return nil
}
