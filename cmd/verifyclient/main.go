package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/face-match/internal/client"
)

var (
	imagesDir string
	verifyURL string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "verifyclient",
	Short: "Send a directory of images to the face match /verify endpoint",
	Long: `verifyclient reads the images in a local directory, uploads the first one
as the target and the rest as comparisons, and prints the raw response.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return client.New(verifyURL, timeout).Run(cmd.Context(), cmd.OutOrStdout(), imagesDir)
	},
}

func init() {
	cobra.OnInitialize(func() {
		// .env file is optional, don't fail if not found
		_ = godotenv.Load()
		if env := os.Getenv("VERIFY_URL"); env != "" && !rootCmd.Flags().Changed("url") {
			verifyURL = env
		}
	})
	rootCmd.Flags().StringVar(&imagesDir, "dir", "test_images", "Directory holding the target and comparison images")
	rootCmd.Flags().StringVar(&verifyURL, "url", "http://127.0.0.1:5000/verify", "Full URL of the verify endpoint")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "HTTP client timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
