package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a signing secret",
	Long: `Generate a random secret suitable for STREAM_SIGNING_SECRET.
Rotating the secret invalidates every outstanding signed stream URL.`,
	Run: func(cmd *cobra.Command, args []string) {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read random bytes: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(base64.RawURLEncoding.EncodeToString(buf))
	},
}

func init() {
	rootCmd.AddCommand(secretCmd)
}
