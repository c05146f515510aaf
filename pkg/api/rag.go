package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// RAGFile is one document in a chat's retrieval context.
type RAGFile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListRAGFiles returns the documents attached to a chat's RAG context.
func (c *Client) ListRAGFiles(ctx context.Context, chatID string) ([]RAGFile, error) {
	var files []RAGFile
	if err := c.getJSON(ctx, fmt.Sprintf("/chat/%s/rag-files/", url.PathEscape(chatID)), &files); err != nil {
		return nil, fmt.Errorf("listing rag files: %w", err)
	}
	return files, nil
}

// UploadRAGFile adds a document to a chat's RAG context and returns the
// stored file record.
func (c *Client) UploadRAGFile(ctx context.Context, chatID, fileName string, r io.Reader) (RAGFile, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return RAGFile{}, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return RAGFile{}, fmt.Errorf("copying upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return RAGFile{}, fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/chat/%s/rag-files/", chatID), &buf)
	if err != nil {
		return RAGFile{}, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RAGFile{}, fmt.Errorf("uploading rag file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RAGFile{}, c.statusError(resp)
	}

	var out struct {
		File RAGFile `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RAGFile{}, fmt.Errorf("decoding upload response: %w", err)
	}
	return out.File, nil
}

// DeleteRAGFile removes a document from a chat's RAG context.
func (c *Client) DeleteRAGFile(ctx context.Context, chatID string, fileID int64) error {
	path := fmt.Sprintf("/chat/%s/rag-files/%d/delete/", url.PathEscape(chatID), fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting rag file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return nil
}
