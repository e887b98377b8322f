package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up"
	"github.com/JohnGrosso13/r2up/config"
)

var (
	uploadContentType string
	uploadMetadata    []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> [remote-key]",
	Short: "Upload a file to the store",
	Long: `Upload a local file to the store with one signed PUT.

The remote key defaults to the configured key prefix plus the local
file name. Metadata pairs are sanitized and attached as object
metadata headers.

Examples:
  r2up upload ./report.pdf
  r2up upload ./avatar.png uploads/avatar/u42.png
  r2up upload --meta original_name=Report.pdf ./report.pdf`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadContentType, "content-type", "t", "", "override content-type")
	uploadCmd.Flags().StringArrayVar(&uploadMetadata, "meta", nil, "object metadata pair key=value, repeatable")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	localPath := args[0]

	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	service, err := clientService(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(localPath))
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	key := ""
	if len(args) > 1 {
		key = args[1]
	} else {
		prefix := cfg.Store.KeyPrefix
		if prefix == "" {
			prefix = r2up.DefaultKeyPrefix
		}
		key = path.Join(prefix, filepath.Base(localPath))
	}

	contentType := uploadContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(localPath))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	metadata, err := parseMetadataPairs(uploadMetadata)
	if err != nil {
		return err
	}

	result, err := service.UploadBuffer(cmd.Context(), r2up.UploadBufferParams{
		Key:         key,
		Data:        data,
		ContentType: contentType,
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	fmt.Printf("Uploaded %s (%d bytes)\n", result.Key, len(data))
	fmt.Println(result.URL)
	return nil
}

func parseMetadataPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata pair %q, want key=value", pair)
		}
		metadata[k] = v
	}
	return metadata, nil
}
