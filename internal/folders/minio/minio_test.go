package minio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/stagehand/internal/folders"
)

// fakeClient keeps the objects of a single bucket in memory
type fakeClient struct {
	mtx        sync.Mutex
	buckets    map[string]bool
	objects    map[string][]byte
	types      map[string]string
	makeErr    error
	putErr     error
	removeErr  error
	makeCalled int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (f *fakeClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.buckets[bucketName], nil
}

func (f *fakeClient) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.makeCalled++
	if f.makeErr != nil {
		return f.makeErr
	}
	f.buckets[bucketName] = true
	return nil
}

func (f *fakeClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader,
	objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.objects[objectName] = data
	f.types[objectName] = opts.ContentType
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: int64(len(data))}, nil
}

func (f *fakeClient) ListObjects(ctx context.Context, bucketName string,
	opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	ch := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k, Size: int64(len(f.objects[k]))}
	}
	close(ch)
	return ch
}

func (f *fakeClient) RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo,
	opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
	errCh := make(chan minio.RemoveObjectError)
	go func() {
		defer close(errCh)
		for obj := range objectsCh {
			if f.removeErr != nil {
				errCh <- minio.RemoveObjectError{ObjectName: obj.Key, Err: f.removeErr}
				continue
			}
			f.mtx.Lock()
			delete(f.objects, obj.Key)
			f.mtx.Unlock()
		}
	}()
	return errCh
}

func newTestService(client Client) *FolderService {
	logger, _ := test.NewNullLogger()
	svc := NewWithClient(client, "stagehand", "performances", logrus.NewEntry(logger))
	svc.nowFunc = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }
	return svc
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)

	require.NoError(t, svc.EnsureBucket(context.Background(), "us-east-1"))
	assert.True(t, client.buckets["stagehand"])
	assert.Equal(t, 1, client.makeCalled)

	require.NoError(t, svc.EnsureBucket(context.Background(), "us-east-1"))
	assert.Equal(t, 1, client.makeCalled)
}

func TestEnsureBucketToleratesParallelCreation(t *testing.T) {
	client := newFakeClient()
	client.makeErr = minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou", Message: "already owned"}
	svc := newTestService(client)

	assert.NoError(t, svc.EnsureBucket(context.Background(), ""))
}

func TestEnsureBucketFails(t *testing.T) {
	client := newFakeClient()
	client.makeErr = fmt.Errorf("access denied")
	svc := newTestService(client)

	assert.Error(t, svc.EnsureBucket(context.Background(), ""))
}

func TestCreateFolderWritesMarker(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)

	id, err := svc.CreateFolder(context.Background(), "Winter Concert")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "winter-concert-"))

	key := folders.MarkerKey("performances", id)
	require.Contains(t, client.objects, key)
	assert.Equal(t, folders.MarkerContentType, client.types[key])
	var m folders.Marker
	require.NoError(t, json.Unmarshal(client.objects[key], &m))
	assert.Equal(t, "Winter Concert", m.Name)
}

func TestCreateFolderFails(t *testing.T) {
	client := newFakeClient()
	client.putErr = fmt.Errorf("connection refused")
	svc := newTestService(client)

	id, err := svc.CreateFolder(context.Background(), "Winter Concert")
	assert.Error(t, err)
	assert.Empty(t, id)
}

func TestDeleteFolderRemovesContents(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	ctx := context.Background()

	id, err := svc.CreateFolder(ctx, "Winter Concert")
	require.NoError(t, err)
	client.objects["performances/"+id+"/poster.png"] = []byte("png")
	client.objects["performances/other/.folder"] = []byte("{}")

	ok, err := svc.DeleteFolder(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, client.objects, 1)
	assert.Contains(t, client.objects, "performances/other/.folder")

	ok, err = svc.DeleteFolder(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteFolderReportsRemoveErrors(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	ctx := context.Background()

	id, err := svc.CreateFolder(ctx, "Winter Concert")
	require.NoError(t, err)
	client.removeErr = fmt.Errorf("access denied")

	ok, err := svc.DeleteFolder(ctx, id)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDeleteFolderRejectsIllegalID(t *testing.T) {
	svc := newTestService(newFakeClient())
	ok, err := svc.DeleteFolder(context.Background(), "../etc")
	assert.Error(t, err)
	assert.False(t, ok)
}
