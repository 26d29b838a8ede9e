package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("img-"+name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

type receivedFile struct {
	field, filename, content string
}

func recordingServer(t *testing.T, received *[]receivedFile) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reader, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart reader: %v", err)
			return
		}
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("next part: %v", err)
				return
			}
			data, _ := io.ReadAll(part)
			*received = append(*received, receivedFile{part.FormName(), part.FileName(), string(data)})
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches":["b.jpg"],"non_matches":["c.png"]}`))
	}))
}

func TestCollectImagesFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg", "b.jpeg", "c.png", "notes.txt", "d.gif")
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := CollectImages(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"a.jpg", "b.jpeg", "c.png"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRunUploadsFirstImageAsTarget(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg", "b.jpg", "c.png")

	var received []receivedFile
	srv := recordingServer(t, &received)
	defer srv.Close()

	var out bytes.Buffer
	if err := New(srv.URL+"/verify", time.Second).Run(context.Background(), &out, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []receivedFile{
		{"target", "target.jpg", "img-a.jpg"},
		{"comparisons", "b.jpg", "img-b.jpg"},
		{"comparisons", "c.png", "img-c.png"},
	}
	if !reflect.DeepEqual(received, want) {
		t.Fatalf("got %+v want %+v", received, want)
	}
	if !strings.Contains(out.String(), `{"matches":["b.jpg"],"non_matches":["c.png"]}`) {
		t.Fatalf("expected raw response in output, got %q", out.String())
	}
	if !strings.Contains(out.String(), "Target image: a.jpg") {
		t.Fatalf("expected target in output, got %q", out.String())
	}
}

func TestRunCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "test_images")

	var out bytes.Buffer
	if err := New("http://127.0.0.1:1/verify", time.Second).Run(context.Background(), &out, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to be created: %v", err)
	}
	if !strings.Contains(out.String(), "Please place your test images") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRunNeedsTwoImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "only.jpg")

	var out bytes.Buffer
	if err := New("http://127.0.0.1:1/verify", time.Second).Run(context.Background(), &out, dir); err != nil {
		t.Fatalf("expected instructions without an error, got %v", err)
	}
	if !strings.Contains(out.String(), "Please add at least 2 images") {
		t.Fatalf("expected instructions, got %q", out.String())
	}
	if strings.Contains(out.String(), "Target image:") {
		t.Fatalf("expected no request to be attempted, got %q", out.String())
	}
}

func TestRunReportsRequestError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg", "b.jpg")

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/verify"
	srv.Close()

	var out bytes.Buffer
	err := New(url, time.Second).Run(context.Background(), &out, dir)
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Fatalf("expected request error for closed server, got %v", err)
	}
	if strings.Contains(out.String(), "API Response") {
		t.Fatalf("unexpected response output: %q", out.String())
	}
}

func TestVerifyFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg")

	_, err := New("http://127.0.0.1:1/verify", time.Second).Verify(context.Background(), dir, "a.jpg", []string{"missing.jpg"})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
