// Package documents lists a client's published documents and manages
// uploads: presigned object-storage PUTs for client files and an admin
// Drive folder for staff-published documents.
package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/scukconnect/clientportal/internal/logging"
	sc "github.com/scukconnect/clientportal/internal/server/config"
	"github.com/scukconnect/clientportal/internal/server/google"
	"github.com/scukconnect/clientportal/internal/server/sheets"
)

// UploadFolderName is the admin Drive folder receiving staff uploads.
const UploadFolderName = "Client Portal Documents"

// DriveFiles is the slice of the Drive client the listing needs.
type DriveFiles interface {
	GetFile(ctx context.Context, fileID string) (*google.File, error)
}

// AdminDrive is the slice of the Drive client admin publishing needs.
type AdminDrive interface {
	EnsureFolder(ctx context.Context, name string) (string, error)
	UploadFile(ctx context.Context, folderID, name, mimeType string, content io.Reader) (*google.File, error)
}

// SheetDocuments lists the Documents-sheet rows for one client.
type SheetDocuments interface {
	DocumentsForClient(ctx context.Context, clientCode string) ([]sheets.Record, error)
}

// Document is one row of the client's document list. DriveFile is present
// when the row references a Drive file and its metadata was fetched;
// DriveError carries a per-file failure without failing the listing.
type Document struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Property   string       `json:"property"`
	Date       string       `json:"date"`
	UploadedBy string       `json:"uploaded_by"`
	DriveFile  *google.File `json:"drive_file,omitempty"`
	DriveError string       `json:"drive_error,omitempty"`
}

type Service struct {
	sheet  SheetDocuments
	drive  DriveFiles
	config *sc.Config
	logger logging.Logger
}

func NewService(sheet SheetDocuments, drive DriveFiles, config *sc.Config, logger logging.Logger) *Service {
	return &Service{sheet: sheet, drive: drive, config: config, logger: logger}
}

// ListForClient returns the client's documents with Drive metadata attached
// where a file id column is present. Per-file Drive failures are reported
// inline; only the sheet read itself can fail the listing.
func (s *Service) ListForClient(ctx context.Context, clientCode string) ([]Document, error) {

	records, err := s.sheet.DocumentsForClient(ctx, clientCode)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(records))
	for _, rec := range records {

		name := rec["name"]
		if name == "" {
			name = rec["document_name"]
		}

		doc := Document{
			Name:       name,
			Type:       rec["type"],
			Property:   rec["property"],
			Date:       rec["date"],
			UploadedBy: rec["uploaded_by"],
		}

		fileID := rec["file_id"]
		if fileID == "" {
			fileID = rec["drive_file_id"]
		}
		if fileID != "" {
			file, err := s.drive.GetFile(ctx, fileID)
			if err != nil {
				s.logger.Warn(ctx, "drive metadata fetch failed", "file_id", fileID, "error", err)
				doc.DriveError = err.Error()
			} else {
				doc.DriveFile = file
			}
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

// PublishToAdminDrive uploads a staff document into the shared admin Drive
// folder, creating the folder on first use.
func PublishToAdminDrive(ctx context.Context, drive AdminDrive, name, mimeType string, content io.Reader) (*google.File, error) {

	folderID, err := drive.EnsureFolder(ctx, UploadFolderName)
	if err != nil {
		return nil, fmt.Errorf("error preparing upload folder: %w", err)
	}

	return drive.UploadFile(ctx, folderID, name, mimeType, content)
}

func randomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *Service) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
	})

	return s3.NewPresignClient(client), nil
}

// GetPresignedPutUrl issues a one-off upload slot in object storage for a
// client file and returns the storage key and the presigned PUT URL.
func (s *Service) GetPresignedPutUrl(ctx context.Context) (string, string, error) {

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key := randomStorageKey()

	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// GetPresignedGetUrl returns a short-lived download URL for a stored file.
func (s *Service) GetPresignedGetUrl(ctx context.Context, key string) (string, error) {

	presignClient, err := s.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket

	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
