package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"gowa-gateway/internal/service"
)

// maxMediaSize membatasi ukuran file yang diambil dari media_url.
var maxMediaSize int64 = 64 << 20

var errMediaTooLarge = errors.New("media too large")

type uploader interface {
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
}

// buildMessage menyusun protobuf message dari content yang sudah divalidasi.
// Media diambil dulu dari URL lalu di-upload ke server WhatsApp.
func buildMessage(ctx context.Context, content service.Content, up uploader, media *http.Client) (*waE2E.Message, error) {
	switch content.Type {
	case service.ContentText, "":
		return &waE2E.Message{Conversation: proto.String(content.Text)}, nil

	case service.ContentImage:
		data, mime, err := fetchMedia(ctx, media, content.MediaURL)
		if err != nil {
			return nil, err
		}
		if content.MimeType != "" {
			mime = content.MimeType
		}
		uploaded, err := up.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       optional(content.Text),
			Mimetype:      proto.String(mime),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}, nil

	case service.ContentDocument:
		data, _, err := fetchMedia(ctx, media, content.MediaURL)
		if err != nil {
			return nil, err
		}
		uploaded, err := up.Upload(ctx, data, whatsmeow.MediaDocument)
		if err != nil {
			return nil, fmt.Errorf("upload document: %w", err)
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       optional(content.Text),
			Mimetype:      proto.String(content.MimeType),
			FileName:      proto.String(content.FileName),
			Title:         proto.String(content.FileName),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}, nil

	case service.ContentList:
		return &waE2E.Message{ListMessage: buildList(content)}, nil
	}
	return nil, fmt.Errorf("%w: unsupported message type %q", service.ErrValidation, content.Type)
}

func buildList(content service.Content) *waE2E.ListMessage {
	sections := make([]*waE2E.ListMessage_Section, 0, len(content.Sections))
	for _, s := range content.Sections {
		rows := make([]*waE2E.ListMessage_Row, 0, len(s.Rows))
		for _, r := range s.Rows {
			rows = append(rows, &waE2E.ListMessage_Row{
				Title:       proto.String(r.Title),
				Description: proto.String(r.Description),
				RowID:       proto.String(r.RowID),
			})
		}
		sections = append(sections, &waE2E.ListMessage_Section{
			Title: proto.String(s.Title),
			Rows:  rows,
		})
	}

	return &waE2E.ListMessage{
		Title:       proto.String(content.Title),
		Description: proto.String(content.Text),
		ButtonText:  proto.String(content.ButtonText),
		FooterText:  proto.String(content.Footer),
		ListType:    waE2E.ListMessage_SINGLE_SELECT.Enum(),
		Sections:    sections,
	}
}

func fetchMedia(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("media url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("download media: status %d", resp.StatusCode)
	}

	// baca satu byte lebih supaya file kebesaran ketahuan, bukan terpotong
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > maxMediaSize {
		return nil, "", fmt.Errorf("%w: media larger than %d bytes", errMediaTooLarge, maxMediaSize)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") {
		mime = http.DetectContentType(data)
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return data, mime, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return proto.String(s)
}
