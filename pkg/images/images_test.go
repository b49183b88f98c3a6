package images

import (
	"context"
	"errors"
	"testing"

	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type asset struct {
	data        []byte
	contentType string
	err         error
}

type stubFetcher struct {
	assets map[string]asset
	calls  []string
}

func (f *stubFetcher) FetchAsset(_ context.Context, url string) ([]byte, string, error) {
	f.calls = append(f.calls, url)
	a, ok := f.assets[url]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return a.data, a.contentType, a.err
}

func TestResolveFirstWebImage(t *testing.T) {
	fetcher := &stubFetcher{assets: map[string]asset{
		"https://a.org/1.jpg": {data: []byte("jpeg"), contentType: "image/jpeg"},
		"https://a.org/2.jpg": {data: []byte("jpeg2"), contentType: "image/jpeg"},
	}}
	r := New(fetcher, nil)

	img := r.Resolve(context.Background(), []string{"https://a.org/1.jpg", "https://a.org/2.jpg"}, nil)
	require.NotNil(t, img)
	assert.Equal(t, "https://a.org/1.jpg", img.Source)
	assert.Equal(t, []string{"https://a.org/1.jpg"}, fetcher.calls)
}

func TestResolveFallsBackThroughURLs(t *testing.T) {
	fetcher := &stubFetcher{assets: map[string]asset{
		"https://a.org/page.html": {data: []byte("<html></html>"), contentType: "text/html"},
		"https://a.org/ok":        {data: pngHeader, contentType: "application/octet-stream"},
	}}
	r := New(fetcher, nil)

	img := r.Resolve(context.Background(), []string{"https://a.org/missing.jpg", "https://a.org/page.html", "https://a.org/ok"}, nil)
	require.NotNil(t, img)
	assert.Equal(t, "https://a.org/ok", img.Source)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Len(t, fetcher.calls, 3)
}

func TestResolveFallsBackToEmbedded(t *testing.T) {
	fetcher := &stubFetcher{}
	r := New(fetcher, nil)
	embedded := []models.Image{
		{Data: []byte("first"), ContentType: "image/png", Source: "note:a"},
		{Data: []byte("second"), ContentType: "image/jpeg", Source: "note:b"},
	}

	img := r.Resolve(context.Background(), []string{"https://a.org/broken.jpg"}, embedded)
	require.NotNil(t, img)
	assert.Equal(t, "note:a", img.Source)
	assert.Equal(t, "image/png", img.ContentType)
}

func TestResolveNoImage(t *testing.T) {
	r := New(&stubFetcher{}, nil)
	assert.Nil(t, r.Resolve(context.Background(), nil, nil))

	r = New(nil, nil)
	assert.Nil(t, r.Resolve(context.Background(), []string{"https://a.org/x.jpg"}, nil))
}

func TestImageContentType(t *testing.T) {
	tests := []struct {
		declared string
		data     []byte
		expected string
	}{
		{"image/webp", nil, "image/webp"},
		{"IMAGE/JPEG; charset=binary", nil, "image/jpeg"},
		{"", pngHeader, "image/png"},
		{"text/html", pngHeader, ""},
		{"", []byte("plain text"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.expected, imageContentType(tt.declared, tt.data))
		})
	}
}
