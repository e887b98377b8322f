package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JohnGrosso13/r2up"
)

var multipartCmd = &cobra.Command{
	Use:   "multipart",
	Short: "Drive multipart upload sessions",
	Long: `Drive multipart upload sessions against the store.

A session starts with create, which reserves an upload ID and hands out
presigned URLs for each part. After the part bytes are PUT to those
URLs, complete assembles the object from the reported ETags. Sessions
that will not finish should be aborted to free the stored parts.`,
}

var (
	mpFilename    string
	mpContentType string
	mpFileSize    int64
	mpTotalParts  int
	mpKind        string
	mpOwner       string
	mpMetadata    []string
	mpParts       []string
)

var multipartCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a multipart session",
	Long: `Start a multipart session and print it as JSON.

The printed session carries the object key, the upload ID, the part
size, and a presigned URL per part.

Examples:
  r2up multipart create --filename video.mp4 --size 104857600
  r2up multipart create --filename backup.tar --kind backup --parts 8`,
	RunE: runMultipartCreate,
}

var multipartCompleteCmd = &cobra.Command{
	Use:   "complete <upload-id> <key>",
	Short: "Complete a multipart session",
	Long: `Assemble the object from its uploaded parts.

Each part is reported as number:etag. Parts may be given in any order.

Example:
  r2up multipart complete 2~abc123 uploads/video/v.mp4 \
    --part '1:"etag-a"' --part '2:"etag-b"'`,
	Args: cobra.ExactArgs(2),
	RunE: runMultipartComplete,
}

var multipartAbortCmd = &cobra.Command{
	Use:   "abort <upload-id> <key>",
	Short: "Abort a multipart session",
	Long:  `Abort a multipart session, discarding any uploaded parts.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runMultipartAbort,
}

func init() {
	multipartCreateCmd.Flags().StringVar(&mpFilename, "filename", "", "original file name, folded into the object key")
	multipartCreateCmd.Flags().StringVarP(&mpContentType, "content-type", "t", "", "object content-type")
	multipartCreateCmd.Flags().Int64Var(&mpFileSize, "size", 0, "file size in bytes, 0 if unknown")
	multipartCreateCmd.Flags().IntVar(&mpTotalParts, "parts", 0, "requested part count, 0 derives from size")
	multipartCreateCmd.Flags().StringVar(&mpKind, "kind", "", "logical grouping folded into the object key")
	multipartCreateCmd.Flags().StringVar(&mpOwner, "owner", "", "owner identifier folded into the object key")
	multipartCreateCmd.Flags().StringArrayVar(&mpMetadata, "meta", nil, "object metadata pair key=value, repeatable")
	_ = multipartCreateCmd.MarkFlagRequired("filename")

	multipartCompleteCmd.Flags().StringArrayVar(&mpParts, "part", nil, "uploaded part as number:etag, repeatable")
	_ = multipartCompleteCmd.MarkFlagRequired("part")

	multipartCmd.AddCommand(multipartCreateCmd)
	multipartCmd.AddCommand(multipartCompleteCmd)
	multipartCmd.AddCommand(multipartAbortCmd)
	rootCmd.AddCommand(multipartCmd)
}

func runMultipartCreate(cmd *cobra.Command, args []string) error {
	service, err := clientService(cmd)
	if err != nil {
		return err
	}

	metadata, err := parseMetadataPairs(mpMetadata)
	if err != nil {
		return err
	}

	upload, err := service.CreateMultipartUpload(cmd.Context(), r2up.CreateMultipartParams{
		OwnerID:     mpOwner,
		Filename:    mpFilename,
		ContentType: mpContentType,
		FileSize:    mpFileSize,
		TotalParts:  mpTotalParts,
		Kind:        mpKind,
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(upload)
}

func runMultipartComplete(cmd *cobra.Command, args []string) error {
	uploadID, key := args[0], args[1]

	parts, err := parseCompletedParts(mpParts)
	if err != nil {
		return err
	}

	service, err := clientService(cmd)
	if err != nil {
		return err
	}

	err = service.CompleteMultipartUpload(cmd.Context(), r2up.CompleteMultipartParams{
		UploadID: uploadID,
		Key:      key,
		Parts:    parts,
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}

	fmt.Printf("Completed %s (%d parts)\n", key, len(parts))
	return nil
}

func runMultipartAbort(cmd *cobra.Command, args []string) error {
	uploadID, key := args[0], args[1]

	service, err := clientService(cmd)
	if err != nil {
		return err
	}

	err = service.AbortMultipartUpload(cmd.Context(), r2up.AbortMultipartParams{
		UploadID: uploadID,
		Key:      key,
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}

	fmt.Printf("Aborted %s\n", key)
	return nil
}

func parseCompletedParts(pairs []string) ([]r2up.CompletedPart, error) {
	parts := make([]r2up.CompletedPart, 0, len(pairs))
	for _, pair := range pairs {
		numStr, etag, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid part %q, want number:etag", pair)
		}
		num, err := strconv.Atoi(numStr)
		if err != nil || num < 1 {
			return nil, fmt.Errorf("invalid part number in %q", pair)
		}
		parts = append(parts, r2up.CompletedPart{PartNumber: num, ETag: etag})
	}
	return parts, nil
}
