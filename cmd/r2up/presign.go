package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up"
)

var (
	presignMethod string
	presignTTL    time.Duration
)

var presignCmd = &cobra.Command{
	Use:   "presign <key>",
	Short: "Generate a presigned URL for an object",
	Long: `Generate a presigned URL granting one HTTP operation on an object.

The URL is a complete capability: whoever holds it can perform the
operation until the expiry window closes, with no further
authentication.

Examples:
  r2up presign uploads/report/report.pdf
  r2up presign --method PUT --ttl 15m uploads/incoming/data.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runPresign,
}

func init() {
	presignCmd.Flags().StringVarP(&presignMethod, "method", "m", http.MethodGet, "HTTP method the URL grants")
	presignCmd.Flags().DurationVar(&presignTTL, "ttl", 30*time.Minute, "how long the URL stays valid")
	rootCmd.AddCommand(presignCmd)
}

func runPresign(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !r2up.IsValidKey(key) {
		return fmt.Errorf("invalid object key: %q", key)
	}

	method := strings.ToUpper(presignMethod)
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodHead, http.MethodDelete:
	default:
		return fmt.Errorf("unsupported method: %s", presignMethod)
	}

	service, err := clientService(cmd)
	if err != nil {
		return err
	}

	signedURL, expiresAt := service.Signer().Presign(method, key, nil, presignTTL)

	fmt.Println(signedURL)
	fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
