package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"

	"gowa-gateway/internal/service"
)

type fakeUploader struct {
	data      []byte
	mediaType whatsmeow.MediaType
	err       error
}

func (u *fakeUploader) Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	u.data = plaintext
	u.mediaType = appInfo
	if u.err != nil {
		return whatsmeow.UploadResponse{}, u.err
	}
	return whatsmeow.UploadResponse{
		URL:        "https://mmg.whatsapp.net/x",
		DirectPath: "/v/x",
		MediaKey:   []byte("key"),
		FileLength: uint64(len(plaintext)),
	}, nil
}

func mediaServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildMessage_Text(t *testing.T) {
	msg, err := buildMessage(context.Background(), service.Content{Type: service.ContentText, Text: "halo"}, &fakeUploader{}, http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "halo", msg.GetConversation())
}

func TestBuildMessage_Image(t *testing.T) {
	srv := mediaServer(t, "image/png; charset=binary", []byte("png-bytes"))
	up := &fakeUploader{}

	msg, err := buildMessage(context.Background(), service.Content{
		Type:     service.ContentImage,
		MediaURL: srv.URL + "/a.png",
		Text:     "caption",
	}, up, srv.Client())
	require.NoError(t, err)

	assert.Equal(t, []byte("png-bytes"), up.data)
	assert.Equal(t, whatsmeow.MediaImage, up.mediaType)

	img := msg.GetImageMessage()
	require.NotNil(t, img)
	assert.Equal(t, "caption", img.GetCaption())
	assert.Equal(t, "image/png", img.GetMimetype())
	assert.Equal(t, "https://mmg.whatsapp.net/x", img.GetURL())
	assert.Equal(t, "/v/x", img.GetDirectPath())
	assert.Equal(t, uint64(len("png-bytes")), img.GetFileLength())
}

func TestBuildMessage_ImageWithoutCaption(t *testing.T) {
	srv := mediaServer(t, "image/jpeg", []byte("jpg"))

	msg, err := buildMessage(context.Background(), service.Content{Type: service.ContentImage, MediaURL: srv.URL}, &fakeUploader{}, srv.Client())
	require.NoError(t, err)
	assert.Nil(t, msg.GetImageMessage().Caption)
}

func TestBuildMessage_Document(t *testing.T) {
	srv := mediaServer(t, "", []byte("%PDF-1.4"))
	up := &fakeUploader{}

	msg, err := buildMessage(context.Background(), service.Content{
		Type:     service.ContentDocument,
		MediaURL: srv.URL + "/invoice",
		MimeType: "application/pdf",
		FileName: "invoice.pdf",
	}, up, srv.Client())
	require.NoError(t, err)

	assert.Equal(t, whatsmeow.MediaDocument, up.mediaType)
	doc := msg.GetDocumentMessage()
	require.NotNil(t, doc)
	assert.Equal(t, "application/pdf", doc.GetMimetype())
	assert.Equal(t, "invoice.pdf", doc.GetFileName())
}

func TestBuildMessage_MediaFailures(t *testing.T) {
	srv := mediaServer(t, "image/png", []byte("x"))

	_, err := buildMessage(context.Background(), service.Content{Type: service.ContentImage, MediaURL: srv.URL + "/missing"}, &fakeUploader{}, srv.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = buildMessage(context.Background(), service.Content{Type: service.ContentImage, MediaURL: srv.URL}, &fakeUploader{err: assert.AnError}, srv.Client())
	require.ErrorIs(t, err, assert.AnError)
}

func TestBuildMessage_OversizedMediaIsRejected(t *testing.T) {
	old := maxMediaSize
	maxMediaSize = 1024
	t.Cleanup(func() { maxMediaSize = old })

	up := &fakeUploader{}
	srv := mediaServer(t, "application/pdf", make([]byte, 1025))
	_, err := buildMessage(context.Background(), service.Content{Type: service.ContentDocument, MediaURL: srv.URL}, up, srv.Client())
	require.ErrorIs(t, err, errMediaTooLarge)
	assert.Nil(t, up.data, "nothing may be uploaded")

	exact := mediaServer(t, "application/pdf", make([]byte, 1024))
	_, err = buildMessage(context.Background(), service.Content{Type: service.ContentDocument, MediaURL: exact.URL}, up, exact.Client())
	require.NoError(t, err)
	assert.Len(t, up.data, 1024)
}

func TestBuildMessage_List(t *testing.T) {
	msg, err := buildMessage(context.Background(), service.Content{
		Type:       service.ContentList,
		Text:       "Pilih menu",
		Footer:     service.DefaultListFooter,
		Title:      service.DefaultListTitle,
		ButtonText: service.DefaultListButtonText,
		Sections: []service.ListSection{{
			Title: "Tagihan",
			Rows:  []service.ListRow{{Title: "Cek", RowID: "1"}},
		}},
	}, &fakeUploader{}, http.DefaultClient)
	require.NoError(t, err)

	list := msg.GetListMessage()
	require.NotNil(t, list)
	assert.Equal(t, "Pilih menu", list.GetDescription())
	assert.Equal(t, "Menu", list.GetTitle())
	assert.Equal(t, "Klik Disini", list.GetButtonText())
	assert.Equal(t, "Bot Notification", list.GetFooterText())
	assert.Equal(t, waE2E.ListMessage_SINGLE_SELECT, list.GetListType())
	require.Len(t, list.GetSections(), 1)
	assert.Equal(t, "Tagihan", list.GetSections()[0].GetTitle())
	assert.Equal(t, "1", list.GetSections()[0].GetRows()[0].GetRowID())
}

func TestBuildMessage_UnknownType(t *testing.T) {
	_, err := buildMessage(context.Background(), service.Content{Type: "sticker"}, &fakeUploader{}, http.DefaultClient)
	require.ErrorIs(t, err, service.ErrValidation)
}
