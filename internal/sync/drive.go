package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jverhagen/fotomemo/internal/model"
)

// Transport pushes and pulls the metadata document. Whole-document replace
// semantics: the document is always read and written in full.
type Transport interface {
	Push(ctx context.Context, snap model.Snapshot) error
	// Pull returns the stored snapshot, or nil when no document exists yet.
	Pull(ctx context.Context) (*model.Snapshot, error)
}

// multipartBoundary separates metadata and content in upload requests.
const multipartBoundary = "foto_memo_boundary"

// DriveClient implements Transport against the Google Drive v3 REST API.
type DriveClient struct {
	baseURL    string
	uploadURL  string
	fileName   string
	session    *Session
	httpClient *http.Client
}

// DriveOption configures the Drive client.
type DriveOption func(*DriveClient)

// WithBaseURL overrides the API base URL (tests).
func WithBaseURL(u string) DriveOption {
	return func(c *DriveClient) { c.baseURL = u }
}

// WithUploadURL overrides the upload base URL (tests).
func WithUploadURL(u string) DriveOption {
	return func(c *DriveClient) { c.uploadURL = u }
}

// WithFileName sets the name of the metadata document on the drive.
func WithFileName(name string) DriveOption {
	return func(c *DriveClient) { c.fileName = name }
}

// NewDriveClient creates a Drive transport bound to a session.
func NewDriveClient(session *Session, opts ...DriveOption) *DriveClient {
	c := &DriveClient{
		baseURL:   "https://www.googleapis.com/drive/v3",
		uploadURL: "https://www.googleapis.com/upload/drive/v3",
		fileName:  "foto_memo_data.json",
		session:   session,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push replaces the metadata document on the drive, creating it on first
// use. No retry here: the next debounced flush is the retry.
func (c *DriveClient) Push(ctx context.Context, snap model.Snapshot) error {
	token, ok := c.session.Token()
	if !ok {
		return ErrNotSignedIn
	}

	fileID, err := c.findFileID(ctx, token)
	if err != nil {
		return fmt.Errorf("locate document: %w", err)
	}

	content, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	body := multipartBody(c.fileName, content)

	method := http.MethodPost
	uploadURL := c.uploadURL + "/files?uploadType=multipart"
	if fileID != "" {
		method = http.MethodPatch
		uploadURL = c.uploadURL + "/files/" + fileID + "?uploadType=multipart"
	}

	req, err := http.NewRequestWithContext(ctx, method, uploadURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+multipartBoundary)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// Pull fetches the whole metadata document. Returns nil when the document
// does not exist yet (fresh account).
func (c *DriveClient) Pull(ctx context.Context) (*model.Snapshot, error) {
	token, ok := c.session.Token()
	if !ok {
		return nil, ErrNotSignedIn
	}

	fileID, err := c.findFileID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("locate document: %w", err)
	}
	if fileID == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/files/"+fileID+"?alt=media", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &snap, nil
}

// findFileID looks the document up by name. Returns "" when absent.
func (c *DriveClient) findFileID(ctx context.Context, token string) (string, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("name = '%s' and trashed = false", c.fileName))
	q.Set("fields", "files(id)")
	q.Set("spaces", "drive")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/files?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode file list: %w", err)
	}
	if len(result.Files) == 0 {
		return "", nil
	}
	return result.Files[0].ID, nil
}

// multipartBody builds the two-part upload request body: file metadata
// followed by the document content.
func multipartBody(fileName string, content []byte) []byte {
	meta, _ := json.Marshal(map[string]string{
		"name":     fileName,
		"mimeType": "application/json",
	})

	delim := "\r\n--" + multipartBoundary + "\r\n"
	closeDelim := "\r\n--" + multipartBoundary + "--"

	var b bytes.Buffer
	b.WriteString(delim)
	b.WriteString("Content-Type: application/json\r\n\r\n")
	b.Write(meta)
	b.WriteString(delim)
	b.WriteString("Content-Type: application/json\r\n\r\n")
	b.Write(content)
	b.WriteString(closeDelim)
	return b.Bytes()
}

// apiError is a non-2xx response from the Drive API.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("drive API status %d: %s", e.StatusCode, e.Body)
}
