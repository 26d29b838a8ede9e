// Package client is a small manual client for the /verify endpoint.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TargetUploadName is the filename the target is always uploaded under.
const TargetUploadName = "target.jpg"

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// Response is the raw HTTP answer from the server.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client posts image sets to a verification endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New returns a Client for the full /verify URL.
func New(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// CollectImages lists image files in dir in directory order.
func CollectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if hasImageExtension(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func hasImageExtension(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

type openedFile struct {
	field    string
	filename string
	file     *os.File
}

// Verify uploads target and comparisons from dir. Every file opened here is
// closed before Verify returns, whether or not the request succeeds.
func (c *Client) Verify(ctx context.Context, dir, target string, comparisons []string) (resp *Response, err error) {
	var opened []openedFile
	defer func() {
		for _, f := range opened {
			if cerr := f.file.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", f.filename, cerr)
			}
		}
	}()

	open := func(field, uploadName, name string) error {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		opened = append(opened, openedFile{field: field, filename: uploadName, file: f})
		return nil
	}
	if err := open("target", TargetUploadName, target); err != nil {
		return nil, err
	}
	for _, name := range comparisons {
		if err := open("comparisons", name, name); err != nil {
			return nil, err
		}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range opened {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.file); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: raw}, nil
}

// Run is the manual test flow: the first image in dir is the target and
// the rest are comparisons. Progress and the raw response go to out.
func (c *Client) Run(ctx context.Context, out io.Writer, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		fmt.Fprintf(out, "Please place your test images in the '%s' directory\n", dir)
		fmt.Fprintln(out, "You need at least one target image and one or more comparison images")
		return nil
	}

	images, err := CollectImages(dir)
	if err != nil {
		return err
	}
	if len(images) < 2 {
		fmt.Fprintf(out, "Please add at least 2 images to the '%s' directory\n", dir)
		return nil
	}

	target, comparisons := images[0], images[1:]
	fmt.Fprintf(out, "Target image: %s\n", target)
	fmt.Fprintf(out, "Comparison images: %s\n", strings.Join(comparisons, ", "))

	resp, err := c.Verify(ctx, dir, target, comparisons)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nAPI Response (%d):\n%s\n", resp.StatusCode, bytes.TrimSpace(resp.Body))
	return nil
}
