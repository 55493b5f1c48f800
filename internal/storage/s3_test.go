package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Service_PutObject(t *testing.T) {
	client := &fakePutter{}
	svc := NewS3Service(client)

	location, err := svc.PutObject(context.Background(), Object{
		Bucket:      "archive",
		Key:         "/completed/a/b.json/",
		Body:        []byte(`{"ok":true}`),
		ContentType: "application/json",
	})
	require.NoError(t, err)

	assert.Equal(t, "s3://archive/completed/a/b.json", location)
	assert.Equal(t, "archive", aws.ToString(client.input.Bucket))
	assert.Equal(t, "completed/a/b.json", aws.ToString(client.input.Key))
	assert.Equal(t, "application/json", aws.ToString(client.input.ContentType))
	assert.Equal(t, int64(11), aws.ToInt64(client.input.ContentLength))
	assert.Equal(t, `{"ok":true}`, string(client.body))
}

func TestS3Service_PutObjectValidation(t *testing.T) {
	svc := NewS3Service(&fakePutter{})

	_, err := svc.PutObject(context.Background(), Object{Key: "k"})
	assert.Error(t, err)

	_, err = svc.PutObject(context.Background(), Object{Bucket: "b", Key: "/"})
	assert.Error(t, err)
}

func TestS3Service_PutObjectError(t *testing.T) {
	boom := errors.New("access denied")
	svc := NewS3Service(&fakePutter{err: boom})

	_, err := svc.PutObject(context.Background(), Object{Bucket: "b", Key: "k"})
	assert.ErrorIs(t, err, boom)
}
