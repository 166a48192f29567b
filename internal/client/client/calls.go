package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Get issues GET path and decodes the body into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// PostJSON sends in as JSON and decodes the answer into out (may be nil).
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	req, err := NewJSONRequest(http.MethodPost, path, in)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Delete issues DELETE path. Both 200 and 204 count as success.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
	return err
}

// FilePart is one file of a multipart body.
type FilePart struct {
	Field    string
	FileName string
	Content  []byte
}

// PatchMultipart sends fields and files as multipart/form-data with PATCH.
func (c *Client) PatchMultipart(ctx context.Context, path string, fields map[string]string, files []FilePart, out any) error {
	body, contentType, err := encodeMultipart(fields, files)
	if err != nil {
		return fmt.Errorf("encode multipart for %s: %w", path, err)
	}

	resp, err := c.Do(ctx, &Request{
		Method:      http.MethodPatch,
		Path:        path,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func encodeMultipart(fields map[string]string, files []FilePart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
