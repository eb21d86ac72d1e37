package blob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "clocklayer/pkg/domain-errors"
)

func TestProfileImagePath(t *testing.T) {
	p, err := ProfileImagePath("uid_1", "avatar.png")
	require.NoError(t, err)
	assert.Equal(t, "profile_pictures/uid_1/avatar.png", p)

	p, err = ProfileImagePath("uid_1", "../../other/evil.png")
	require.NoError(t, err)
	assert.Equal(t, "profile_pictures/uid_1/evil.png", p)

	p, err = ProfileImagePath("uid_1", `C:\Users\me\face.jpg`)
	require.NoError(t, err)
	assert.Equal(t, "profile_pictures/uid_1/face.jpg", p)

	_, err = ProfileImagePath("uid_1", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

type fakePutter struct {
	in  *s3.PutObjectInput
	err error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	return &s3.PutObjectOutput{}, f.err
}

func TestS3StoreUpload(t *testing.T) {
	putter := &fakePutter{}
	store := NewS3StoreWithClient(putter, "avatars", "https://cdn.example.com/")

	url, err := store.Upload(context.Background(), "profile_pictures/uid_1/a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/profile_pictures/uid_1/a.png", url)
	assert.Equal(t, "avatars", aws.ToString(putter.in.Bucket))
	assert.Equal(t, "image/png", aws.ToString(putter.in.ContentType))
	body, _ := io.ReadAll(putter.in.Body)
	assert.Equal(t, []byte("png"), body)
}

func TestS3StoreUploadError(t *testing.T) {
	store := NewS3StoreWithClient(&fakePutter{err: errors.New("access denied")}, "avatars", "https://cdn")
	_, err := store.Upload(context.Background(), "k", "image/png", nil)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3StoreDefaultsPublicURL(t *testing.T) {
	store, err := NewS3Store(context.Background(), S3Config{
		Region: "us-east-1", AccessKey: "minio", SecretKey: "minio123",
		Endpoint: "http://localhost:9000", Bucket: "avatars", PathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/avatars", store.publicBaseURL)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore("http://localhost:8080/blobs")
	url, err := m.Upload(context.Background(), "profile_pictures/uid_1/a.png", "image/png", []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/blobs/profile_pictures/uid_1/a.png", url)
	obj, ok := m.Get("profile_pictures/uid_1/a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
}
