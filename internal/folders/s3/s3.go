// Package s3 implements the remote folder service on top of an S3 (or S3 compatible) bucket using the AWS SDK
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/stagehand/internal/folders"
	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
)

const defaultRegion = "us-east-1"

// Client is the part of the S3 API used by the folder service
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput,
		optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput,
		optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// FolderService stores performance folders inside an S3 bucket
type FolderService struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	parent   string
	logger   *logrus.Entry
	nowFunc  func() time.Time
}

// New loads the AWS configuration, creates the S3 client and makes sure that the bucket exists.
// Static credentials are only used when an access key is configured - the default credential chain applies otherwise.
func New(ctx context.Context, cfg models.FolderConfig, logger *logrus.Entry) (*FolderService, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	if endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(endpoint))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "New: Failed to load AWS config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// S3 compatible servers usually do not support virtual host addressing
		o.UsePathStyle = endpoint != ""
	})
	svc := NewWithClient(client, cfg.Bucket, cfg.Parent, logger)
	if err := svc.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// endpointURL adds the URL scheme to an endpoint given as host:port
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// NewWithClient creates a folder service working on an existing client
func NewWithClient(client Client, bucket, parent string, logger *logrus.Entry) *FolderService {
	return &FolderService{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		parent:   parent,
		logger:   logger.WithField(log.FldBucket, bucket),
		nowFunc:  time.Now,
	}
}

// EnsureBucket creates the bucket if it does not exist, yet
func (s *FolderService) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	s.logger.Info("Bucket not accessible - trying to create...")
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			code := apiErr.ErrorCode()
			if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
				return nil
			}
		}
		return errors.Wrapf(err, "EnsureBucket: Failed to create bucket '%s'", s.bucket)
	}
	s.logger.Info("Bucket created successfully")
	return nil
}

// CreateFolder implements folders.Service
func (s *FolderService) CreateFolder(ctx context.Context, name string) (string, error) {
	folderID := folders.NewID(name)
	body, err := folders.NewMarker(name, s.nowFunc())
	if err != nil {
		return "", errors.Wrap(err, "CreateFolder: Failed to encode folder marker")
	}
	key := folders.MarkerKey(s.parent, folderID)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(folders.MarkerContentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "CreateFolder: Failed to upload marker '%s'", key)
	}
	s.logger.WithField(log.FldFolder, folderID).Debug("Folder created")
	return folderID, nil
}

// DeleteFolder implements folders.Service
func (s *FolderService) DeleteFolder(ctx context.Context, folderID string) (bool, error) {
	if !folders.ValidID(folderID) {
		return false, fmt.Errorf("DeleteFolder: Illegal folder ID '%s'", folderID)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(folders.Prefix(s.parent, folderID)),
	})
	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, errors.Wrapf(err, "DeleteFolder: Failed to list folder '%s'", folderID)
		}
		if len(page.Contents) == 0 {
			continue
		}
		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return false, errors.Wrapf(err, "DeleteFolder: Failed to delete objects of folder '%s'", folderID)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return false, fmt.Errorf(
				"DeleteFolder: Failed to delete '%s': %s",
				aws.ToString(e.Key), aws.ToString(e.Message),
			)
		}
		deleted += len(ids)
	}
	if deleted == 0 {
		return false, nil
	}
	s.logger.WithFields(logrus.Fields{log.FldFolder: folderID, log.FldCount: deleted}).Debug("Folder deleted")
	return true, nil
}
