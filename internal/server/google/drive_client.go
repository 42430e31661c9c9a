package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
)

const (
	defaultDriveBaseURL   = "https://www.googleapis.com"
	folderMimeType        = "application/vnd.google-apps.folder"
	driveFileFields       = "id,name,mimeType,webViewLink,webContentLink,createdTime,modifiedTime"
	defaultDriveListLimit = 10
)

// File is Drive file metadata, the subset the portal surfaces to clients.
type File struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MimeType       string `json:"mimeType"`
	WebViewLink    string `json:"webViewLink,omitempty"`
	WebContentLink string `json:"webContentLink,omitempty"`
	CreatedTime    string `json:"createdTime,omitempty"`
	ModifiedTime   string `json:"modifiedTime,omitempty"`
}

// DriveClient talks to the Drive v3 REST API with the bound account's
// credentials.
type DriveClient struct {
	transport *apiTransport
	baseURL   string
}

func NewDriveClient(creds *Credentials) *DriveClient {
	return &DriveClient{
		transport: newAPITransport(creds),
		baseURL:   defaultDriveBaseURL,
	}
}

// GetFile fetches metadata for one file.
func (c *DriveClient) GetFile(ctx context.Context, fileID string) (*File, error) {

	u := fmt.Sprintf("%s/drive/v3/files/%s?fields=%s",
		c.baseURL, url.PathEscape(fileID), url.QueryEscape(driveFileFields))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating drive request: %v", err)
	}

	file := &File{}
	if err := c.transport.doJSON(ctx, req, file); err != nil {
		return nil, err
	}

	return file, nil
}

type fileListBody struct {
	Files []File `json:"files"`
}

// ListFiles lists files matching the Drive query q (empty lists everything
// visible to the grant), up to pageSize entries.
func (c *DriveClient) ListFiles(ctx context.Context, q string, pageSize int) ([]File, error) {

	if pageSize <= 0 {
		pageSize = defaultDriveListLimit
	}

	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("fields", "files("+driveFileFields+")")
	if q != "" {
		params.Set("q", q)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/drive/v3/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating drive request: %v", err)
	}

	var body fileListBody
	if err := c.transport.doJSON(ctx, req, &body); err != nil {
		return nil, err
	}

	return body.Files, nil
}

// EnsureFolder returns the id of the named folder, creating it when absent.
func (c *DriveClient) EnsureFolder(ctx context.Context, name string) (string, error) {

	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", name, folderMimeType)
	folders, err := c.ListFiles(ctx, q, 1)
	if err != nil {
		return "", err
	}
	if len(folders) > 0 {
		return folders[0].ID, nil
	}

	metadata := map[string]string{
		"name":     name,
		"mimeType": folderMimeType,
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("error encoding folder metadata: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/drive/v3/files?fields=id", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("error creating drive request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	created := &File{}
	if err := c.transport.doJSON(ctx, req, created); err != nil {
		return "", err
	}

	return created.ID, nil
}

// UploadFile uploads content into the given folder via a multipart
// metadata+media request and returns the created file's metadata.
func (c *DriveClient) UploadFile(ctx context.Context, folderID, name, mimeType string, content io.Reader) (*File, error) {

	metadata := map[string]any{"name": name}
	if folderID != "" {
		metadata["parents"] = []string{folderID}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("error encoding file metadata: %v", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("error building multipart request: %v", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("error building multipart request: %v", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	if mimeType != "" {
		mediaHeader.Set("Content-Type", mimeType)
	}
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return nil, fmt.Errorf("error building multipart request: %v", err)
	}
	if _, err := io.Copy(mediaPart, content); err != nil {
		return nil, fmt.Errorf("error building multipart request: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("error building multipart request: %v", err)
	}

	u := fmt.Sprintf("%s/upload/drive/v3/files?uploadType=multipart&fields=%s",
		c.baseURL, url.QueryEscape(driveFileFields))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, fmt.Errorf("error creating drive request: %v", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())

	file := &File{}
	if err := c.transport.doJSON(ctx, req, file); err != nil {
		return nil, err
	}

	return file, nil
}
