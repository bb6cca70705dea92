package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/minicurl/internal/output"
	"github.com/tanq16/minicurl/internal/utils"
	"github.com/tanq16/minicurl/pkg/minicurl"
)

func newDownloadCmd() *cobra.Command {
	var outputPath string
	var direct bool
	var renew bool

	cmd := &cobra.Command{
		Use:   "download [URL] [--output OUTPUT_PATH] [--direct]",
		Short: "Download a file, resuming interrupted transfers",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url := args[0]
			validateURL(url)
			if renew && outputPath != "" {
				if _, err := os.Stat(outputPath); err == nil {
					outputPath = utils.RenewOutputPath(outputPath)
				}
			}
			if !download(url, outputPath, direct, nil) {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (inferred from the URL if not provided)")
	cmd.Flags().BoolVar(&direct, "direct", false, "Stream to disk during the transfer and resume on top of an existing file")
	cmd.Flags().BoolVar(&renew, "renew", false, "Write to a new numbered file instead of an existing one")
	return cmd
}

// download runs one download with a progress bar and reports the result.
func download(url, outputPath string, direct bool, extraHeaders []string) bool {
	label := outputPath
	if label == "" {
		label = utils.FileNameFromURL(url)
	}
	if direct {
		if info, err := os.Stat(label); err == nil && info.Size() > 0 {
			output.PrintInfo(fmt.Sprintf("Resuming %s from %s", label, output.FormatBytes(uint64(info.Size()))))
		}
	}
	progress := output.NewProgress(label)
	client, cfg := setup(minicurl.WithProgress(progress.Update))
	saved := client.Download(context.Background(), url, outputPath, direct, joinHeaders(cfg.Headers, extraHeaders)...)
	progress.Done()
	if saved == "" {
		output.PrintError(fmt.Sprintf("Download failed: %s", url))
		return false
	}
	output.PrintSuccess(fmt.Sprintf("Saved %s", saved))
	return true
}

// joinHeaders returns base followed by extra in a new slice.
func joinHeaders(base, extra []string) []string {
	lines := make([]string, 0, len(base)+len(extra))
	lines = append(lines, base...)
	return append(lines, extra...)
}
