package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/minicurl/internal/output"
	"github.com/tanq16/minicurl/internal/utils"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Run the requests listed in a YAML file one after another",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			jobs, err := utils.ReadBatchFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Failed to read batch file: %v", err))
				os.Exit(1)
			}
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			failed := 0
			for i, job := range jobs {
				output.PrintHeader(fmt.Sprintf("[%d/%d] %s %s", i+1, len(jobs), job.Op, job.Link))
				if !runBatchJob(job) {
					failed++
				}
			}
			if failed > 0 {
				output.PrintError(fmt.Sprintf("Encountered %d failed operation(s)", failed))
				os.Exit(1)
			}
		},
	}
	return cmd
}

func runBatchJob(job utils.BatchJob) bool {
	if job.Op == "download" {
		return download(job.Link, job.OutputPath, job.Direct, job.Headers)
	}

	client, cfg := setup()
	lines := joinHeaders(cfg.Headers, job.Headers)
	var body string
	switch job.Op {
	case "get":
		body = client.Get(context.Background(), job.Link, lines...)
	case "header":
		body = client.GetHeader(context.Background(), job.Link, lines...)
	case "post":
		body = client.Post(context.Background(), job.Link, job.Payload, lines...)
	case "upload":
		body = client.Upload(context.Background(), job.Link, job.File, lines...)
	}
	if body == "" {
		output.PrintWarning(fmt.Sprintf("No data returned: %s", job.Link))
	}
	if job.OutputPath != "" {
		if err := os.WriteFile(job.OutputPath, []byte(body), 0644); err != nil {
			output.PrintError(fmt.Sprintf("Cannot write %s: %v", job.OutputPath, err))
			return false
		}
		output.PrintSuccess(fmt.Sprintf("Saved %s", job.OutputPath))
		return true
	}
	fmt.Println(body)
	return true
}
