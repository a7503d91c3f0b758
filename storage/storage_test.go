/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := &S3Store{client: fake, bucket: "repo"}

	require.NoError(t, store.Put(ctx, "a/b", strings.NewReader("payload"), 7, "text/plain"))
	assert.Equal(t, "text/plain", fake.types["a/b"])

	rc, err := store.Get(ctx, "a/b")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	require.NoError(t, store.Delete(ctx, "a/b"))
	_, err = store.Get(ctx, "a/b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StorePutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("denied")
	store := &S3Store{client: fake, bucket: "repo"}
	err := store.Put(context.Background(), "k", strings.NewReader("x"), 1, "")
	assert.ErrorContains(t, err, "denied")
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), Config{Driver: "s3"})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "b", strings.NewReader("2"), 1, ""))
	require.NoError(t, store.Put(ctx, "a", strings.NewReader("1"), 1, ""))
	assert.Equal(t, []string{"a", "b"}, store.Keys())

	require.NoError(t, store.Delete(ctx, "a"))
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(context.Background(), Config{Driver: "ftp"})
	assert.Error(t, err)
}

func TestNewKey(t *testing.T) {
	now := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	k1 := NewKey("/repo/", 12, now)
	k2 := NewKey("", 12, now)
	assert.True(t, strings.HasPrefix(k1, "repo/containers/12/2025/03/04/"), k1)
	assert.True(t, strings.HasPrefix(k2, "containers/12/2025/03/04/"), k2)
	assert.NotEqual(t, NewKey("", 12, now), k2)
}
