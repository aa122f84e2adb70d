package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	endpoint   string
	secureConn bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "sealcli",
	Short:        "Sealcli is a simple command-line tool to seal and verify images on a blockseal server",
	SilenceUsage: true,
}

var initialized bool

// Init initiates commands
func Init() error {
	if initialized {
		return nil
	}
	initialized = true

	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "localhost:10000", "blockseal server endpoint")
	rootCmd.PersistentFlags().BoolVar(&secureConn, "secure", false, "connect with TLS")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout of a single request")

	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(blockCmd)

	return nil
}

// Execute executes command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
