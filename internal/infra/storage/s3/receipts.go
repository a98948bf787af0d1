package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"carrental/internal/app/policies"
)

// ReceiptArchive writes batch receipts as JSON objects under
// receipts/<renter>/<task id>.json.
type ReceiptArchive struct {
	Uploader Uploader
}

func (a ReceiptArchive) Archive(ctx context.Context, receipt policies.Receipt) (string, error) {
	if a.Uploader == nil {
		return "", errors.New("s3: receipt archive missing uploader")
	}
	if receipt.TaskID == "" {
		return "", errors.New("s3: receipt task id is required")
	}
	body, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return "", err
	}
	return a.Uploader.Upload(ctx, receiptKey(receipt), bytes.NewReader(body), int64(len(body)), "application/json")
}

func receiptKey(r policies.Receipt) string {
	return fmt.Sprintf("receipts/%s/%s.json", url.PathEscape(r.Renter), url.PathEscape(r.TaskID))
}

// NoopArchive is used when no bucket is configured.
type NoopArchive struct{}

func (NoopArchive) Archive(context.Context, policies.Receipt) (string, error) {
	return "", nil
}

var (
	_ policies.ReceiptArchive = ReceiptArchive{}
	_ policies.ReceiptArchive = NoopArchive{}
)
