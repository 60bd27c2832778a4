// Package minio implements the remote folder service on top of a MinIO bucket
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/stagehand/internal/folders"
	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
)

// Client is the part of the MinIO client used by the folder service
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo,
		opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

// FolderService stores performance folders inside a MinIO bucket
type FolderService struct {
	client  Client
	bucket  string
	parent  string
	logger  *logrus.Entry
	nowFunc func() time.Time
}

// New connects to the MinIO server configured and makes sure that the bucket exists
func New(ctx context.Context, cfg models.FolderConfig, logger *logrus.Entry) (*FolderService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "New: Failed to create MinIO client")
	}
	svc := NewWithClient(client, cfg.Bucket, cfg.Parent, logger)
	if err := svc.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return svc, nil
}

// NewWithClient creates a folder service working on an existing client
func NewWithClient(client Client, bucket, parent string, logger *logrus.Entry) *FolderService {
	return &FolderService{
		client:  client,
		bucket:  bucket,
		parent:  parent,
		logger:  logger.WithField(log.FldBucket, bucket),
		nowFunc: time.Now,
	}
}

// EnsureBucket creates the bucket if it does not exist, yet
func (s *FolderService) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrapf(err, "EnsureBucket: Failed to check for bucket '%s'", s.bucket)
	}
	if exists {
		return nil
	}
	s.logger.Info("Bucket does not exist - trying to create...")
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		if isBucketAlreadyExists(err) {
			s.logger.Info("Bucket has been created in parallel")
			return nil
		}
		return errors.Wrapf(err, "EnsureBucket: Failed to create bucket '%s'", s.bucket)
	}
	s.logger.Info("Bucket created successfully")
	return nil
}

func isBucketAlreadyExists(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" ||
		strings.Contains(err.Error(), "BucketAlreadyExists")
}

// CreateFolder implements folders.Service
func (s *FolderService) CreateFolder(ctx context.Context, name string) (string, error) {
	folderID := folders.NewID(name)
	body, err := folders.NewMarker(name, s.nowFunc())
	if err != nil {
		return "", errors.Wrap(err, "CreateFolder: Failed to encode folder marker")
	}
	key := folders.MarkerKey(s.parent, folderID)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: folders.MarkerContentType,
	})
	if err != nil {
		return "", errors.Wrapf(err, "CreateFolder: Failed to write marker '%s'", key)
	}
	s.logger.WithField(log.FldFolder, folderID).Debug("Folder created")
	return folderID, nil
}

// DeleteFolder implements folders.Service
func (s *FolderService) DeleteFolder(ctx context.Context, folderID string) (bool, error) {
	if !folders.ValidID(folderID) {
		return false, fmt.Errorf("DeleteFolder: Illegal folder ID '%s'", folderID)
	}
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var keys []minio.ObjectInfo
	for obj := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:    folders.Prefix(s.parent, folderID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return false, errors.Wrapf(obj.Err, "DeleteFolder: Failed to list folder '%s'", folderID)
		}
		keys = append(keys, obj)
	}
	if len(keys) == 0 {
		return false, nil
	}
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objectsCh <- k
	}
	close(objectsCh)
	// The error channel has to be drained completely
	var removeErr error
	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil && removeErr == nil {
			removeErr = errors.Wrapf(rErr.Err, "DeleteFolder: Failed to remove '%s'", rErr.ObjectName)
		}
	}
	if removeErr != nil {
		return false, removeErr
	}
	s.logger.WithFields(logrus.Fields{log.FldFolder: folderID, log.FldCount: len(keys)}).Debug("Folder deleted")
	return true, nil
}
