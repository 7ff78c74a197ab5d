package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	objects map[string]string
	types   map[string]string
	fail    error
}

func (f *fakeAPI) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Bucket+"/"+*in.Key] = string(b)
	if in.ContentType != nil {
		f.types[*in.Key] = *in.ContentType
	}
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &awss3.DeleteObjectOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "http://minio:9000/" + *in.Bucket + "/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func TestStore_PutAndURL(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{objects: map[string]string{}, types: map[string]string{}}
	s := NewWithClient(api, fakePresigner{}, "media", "http://minio:9000/", 0)
	ctx := context.Background()

	key, err := s.Put(ctx, "a.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "png", api.objects["media/"+key])
	assert.Equal(t, "image/png", api.types[key])

	u, err := s.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/media/"+key, u)

	back, ok := s.KeyFromURL(u)
	require.True(t, ok)
	assert.Equal(t, key, back)

	require.NoError(t, s.Delete(ctx, key))
	assert.Empty(t, api.objects)
}

func TestStore_PresignedURLMapsBack(t *testing.T) {
	t.Parallel()
	s := NewWithClient(&fakeAPI{}, fakePresigner{}, "media", "http://minio:9000", time.Hour)

	u, err := s.URL(context.Background(), "2026/03/x.jpg")
	require.NoError(t, err)
	assert.Contains(t, u, "X-Amz-Signature")

	key, ok := s.KeyFromURL(u)
	require.True(t, ok)
	assert.Equal(t, "2026/03/x.jpg", key)

	_, ok = s.KeyFromURL("2026/03/x.jpg")
	assert.False(t, ok)
}

func TestStore_PutError(t *testing.T) {
	t.Parallel()
	s := NewWithClient(&fakeAPI{fail: errors.New("boom")}, nil, "media", "http://minio:9000", 0)
	_, err := s.Put(context.Background(), "a.png", strings.NewReader("png"))
	assert.ErrorContains(t, err, "boom")
}
