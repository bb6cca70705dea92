package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [URL]",
		Short: "Print the body of a GET request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			validateURL(args[0])
			client, cfg := setup()
			fmt.Print(client.Get(context.Background(), args[0], cfg.Headers...))
		},
	}
	return cmd
}

func newHeaderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "header [URL]",
		Short: "Print the response headers of a GET request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			validateURL(args[0])
			client, cfg := setup()
			fmt.Print(client.GetHeader(context.Background(), args[0], cfg.Headers...))
		},
	}
	return cmd
}

func newPostCmd() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "post [URL] [--data PAYLOAD]",
		Short: "POST a payload and print the response body",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			validateURL(args[0])
			client, cfg := setup()
			fmt.Print(client.Post(context.Background(), args[0], payload, cfg.Headers...))
		},
	}

	cmd.Flags().StringVarP(&payload, "data", "d", "", "Request payload")
	return cmd
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [URL] [FILE]",
		Short: "PUT a file and print the response body",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			validateURL(args[0])
			client, cfg := setup()
			fmt.Print(client.Upload(context.Background(), args[0], args[1], cfg.Headers...))
		},
	}
	return cmd
}
