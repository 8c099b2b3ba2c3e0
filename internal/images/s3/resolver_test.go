package s3

import (
	"context"
	"errors"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHead struct {
	present map[string]bool
	fail    error
	keys    []string
}

func (f *fakeHead) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.keys = append(f.keys, *in.Key)
	if f.fail != nil {
		return nil, f.fail
	}
	if f.present[*in.Key] {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

type fakePresign struct {
	expires time.Duration
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed/" + *in.Bucket + "/" + *in.Key}, nil
}

func TestResolveImage_Presigned(t *testing.T) {
	head := &fakeHead{present: map[string]bool{"img/PCB-1.png": true}}
	pre := &fakePresign{}
	r := newResolver(head, pre, Config{Bucket: "bom", Prefix: "img/", Extensions: []string{".jpg", ".png"}})

	u, found, err := r.ResolveImage(context.Background(), "PCB-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://signed/bom/img/PCB-1.png", u)
	assert.Equal(t, []string{"img/PCB-1.jpg", "img/PCB-1.png"}, head.keys)
	assert.Equal(t, 15*time.Minute, pre.expires)
}

func TestResolveImage_PublicBase(t *testing.T) {
	head := &fakeHead{present: map[string]bool{"img/A B.jpg": true}}
	r := newResolver(head, &fakePresign{}, Config{
		Bucket: "bom", Prefix: "img/", Extensions: []string{".jpg"},
		PublicBaseURL: "https://cdn.example.com/bom/",
	})

	u, found, err := r.ResolveImage(context.Background(), "A B")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://cdn.example.com/bom/img/A%20B.jpg", u)
}

func TestResolveImage_Missing(t *testing.T) {
	r := newResolver(&fakeHead{}, &fakePresign{}, Config{Bucket: "bom", Extensions: []string{".jpg", ".png"}})
	_, found, err := r.ResolveImage(context.Background(), "X")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = r.ResolveImage(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveImage_TransportError(t *testing.T) {
	r := newResolver(&fakeHead{fail: errors.New("dial tcp: refused")}, &fakePresign{}, Config{Bucket: "bom", Extensions: []string{".jpg"}})
	_, found, err := r.ResolveImage(context.Background(), "X")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("other")))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
