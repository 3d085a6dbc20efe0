package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/campusgigs/internal/clock"
)

func TestNewWebhookArchiveValidatesConfig(t *testing.T) {
	_, err := NewWebhookArchive(Config{}, nil)
	assert.ErrorContains(t, err, "bucket")

	_, err = NewWebhookArchive(Config{Bucket: "b"}, nil)
	assert.ErrorContains(t, err, "region")

	_, err = NewWebhookArchive(Config{Bucket: "b", Region: "af-south-1"}, nil)
	assert.ErrorContains(t, err, "credentials")
}

func TestObjectKeyLayout(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC))
	archive, err := NewWebhookArchive(Config{Bucket: "b", Region: "af-south-1", AccessKey: "k", SecretKey: "s", Prefix: "/prod/"}, clk)
	require.NoError(t, err)

	key := archive.objectKey("subscription")
	assert.Regexp(t, regexp.MustCompile(`^prod/webhooks/subscription/2026/03/07/[0-9a-f-]{36}\.json$`), key)
}

func TestArchiveUploadsToBucket(t *testing.T) {
	var gotPath, gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clk := clock.NewFake(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC))
	archive, err := NewWebhookArchive(Config{
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		AccessKey:    "test",
		SecretKey:    "test",
		Bucket:       "webhooks",
		UsePathStyle: true,
	}, clk)
	require.NoError(t, err)

	key, err := archive.Archive(context.Background(), "escrow", []byte(`{"data":{"tx_ref":"escrow_1"}}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "campusgigs/webhooks/escrow/2026/03/07/"))
	assert.Equal(t, "/webhooks/"+key, gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Contains(t, gotBody, "escrow_1")
}

func TestArchiveRejectsEmptyBody(t *testing.T) {
	archive, err := NewWebhookArchive(Config{Bucket: "b", Region: "r", AccessKey: "k", SecretKey: "s"}, nil)
	require.NoError(t, err)
	_, err = archive.Archive(context.Background(), "escrow", nil)
	assert.Error(t, err)
}

func TestNoopArchive(t *testing.T) {
	key, err := NoopArchive{}.Archive(context.Background(), "escrow", []byte("{}"))
	require.NoError(t, err)
	assert.Empty(t, key)
}
