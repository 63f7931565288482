package service

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentList     ContentType = "list"
)

const (
	DefaultDocumentMime = "application/pdf"
	DefaultDocumentName = "file.pdf"

	DefaultListFooter     = "Bot Notification"
	DefaultListTitle      = "Menu"
	DefaultListButtonText = "Klik Disini"
)

// Content adalah payload outbound. Field yang dipakai tergantung Type:
// text pakai Text, image/document pakai MediaURL + Text sebagai caption,
// list pakai Text + Footer/Title/ButtonText + Sections.
type Content struct {
	Type ContentType

	Text string

	MediaURL string
	MimeType string
	FileName string

	Footer     string
	Title      string
	ButtonText string

	// RawSections adalah sections apa adanya dari caller (hasil decode JSON).
	// Sections terisi setelah prepare() berhasil.
	RawSections any
	Sections    []ListSection
}

type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

type ListRow struct {
	Title       string `json:"title"`
	RowID       string `json:"rowId"`
	Description string `json:"description"`
}

// prepare memvalidasi content dan mengisi default. Untuk list, sections
// divalidasi dan rowId dipaksa jadi string.
func (c Content) prepare() (Content, error) {
	if c.Type == "" {
		c.Type = ContentText
	}

	switch c.Type {
	case ContentText:
		return c, nil

	case ContentImage:
		if c.MediaURL == "" {
			return c, fmt.Errorf("%w: media_url is required for image", ErrValidation)
		}
		return c, nil

	case ContentDocument:
		if c.MediaURL == "" {
			return c, fmt.Errorf("%w: media_url is required for document", ErrValidation)
		}
		if c.MimeType == "" {
			c.MimeType = DefaultDocumentMime
		}
		if c.FileName == "" {
			c.FileName = DefaultDocumentName
		}
		return c, nil

	case ContentList:
		sections, err := SanitizeSections(c.RawSections)
		if err != nil {
			return c, err
		}
		c.Sections = sections
		if c.Footer == "" {
			c.Footer = DefaultListFooter
		}
		if c.Title == "" {
			c.Title = DefaultListTitle
		}
		if c.ButtonText == "" {
			c.ButtonText = DefaultListButtonText
		}
		return c, nil
	}

	return c, fmt.Errorf("%w: unsupported message type %q", ErrValidation, c.Type)
}

// SanitizeSections memvalidasi struktur sections list message.
// Gagal kalau sections kosong / bukan array, atau ada section tanpa rows.
// Duplikat rowId tidak dicek.
func SanitizeSections(raw any) ([]ListSection, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: invalid sections data for list message", ErrValidation)
	}

	out := make([]ListSection, 0, len(items))
	for i, item := range items {
		section, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: section %d is not an object", ErrValidation, i)
		}
		rows, ok := section["rows"].([]any)
		if !ok || len(rows) == 0 {
			return nil, fmt.Errorf("%w: section %d has no rows", ErrValidation, i)
		}

		clean := ListSection{
			Title: stringify(section["title"]),
			Rows:  make([]ListRow, 0, len(rows)),
		}
		for j, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: section %d row %d is not an object", ErrValidation, i, j)
			}
			clean.Rows = append(clean.Rows, ListRow{
				Title:       stringify(row["title"]),
				RowID:       stringify(row["rowId"]),
				Description: stringify(row["description"]),
			})
		}
		out = append(out, clean)
	}
	return out, nil
}

// stringify meniru String(x): angka jadi teks tanpa notasi eksponen,
// nil jadi string kosong.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
