package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type ChatRequest struct {
	Message string `json:"message"`
}

type Source struct {
	File  string  `json:"file"`
	Chunk string  `json:"chunk"`
	Score float32 `json:"score"`
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Status  string   `json:"status"`
}

func AskCmd() *cobra.Command {
	var showChunks bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the uploaded documents",
		Long: `Ask a question about the uploaded documents.

Examples:
  docqa ask "What are the early symptoms of Parkinson's disease?"
  docqa ask --chunks "How is handwriting used for detection?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(NewAPIClientWithCmd(cmd), strings.Join(args, " "), outputJSON, showChunks)
		},
	}

	cmd.Flags().BoolVar(&showChunks, "chunks", false, "Print the matched chunk previews")

	return cmd
}

func runAsk(api *APIClient, question string, outputJSON, showChunks bool) error {
	resp, err := api.Post("/chat", ChatRequest{Message: question})
	if err != nil {
		return fmt.Errorf("failed to ask: %w", err)
	}

	var chat ChatResponse
	if err := json.Unmarshal(resp.Data, &chat); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(chat, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(chat.Answer)
	if len(chat.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, s := range chat.Sources {
			fmt.Printf("  %d. %s\n", i+1, s.File)
			if showChunks {
				fmt.Printf("     %s\n", s.Chunk)
			}
		}
	}
	return nil
}
