package storageserver

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/lfcarvalho/distfs/internal/path"
)

var _ Backend = (*S3Backend)(nil)

// S3Backend stores each file as one S3 object keyed by its path's
// string form. S3 objects have no in-place random-access write, so
// WriteAt does a read-modify-write of the whole object; this backend
// is meant for small files or infrequent writers, not a hot byte-range
// workload.
type S3Backend struct {
	profile string
	region  string
	bucket  string
	client  *s3.S3
}

// NewS3Backend returns a backend writing to the given bucket/region,
// using the named local AWS credentials profile.
func NewS3Backend(profile, region, bucket string) *S3Backend {
	return &S3Backend{profile: profile, region: region, bucket: bucket}
}

func (b *S3Backend) ensureClient() error {
	if b.client != nil {
		return nil
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(b.region),
		Credentials: credentials.NewSharedCredentials("", b.profile),
	})
	if err != nil {
		return errors.Wrap(err, "storageserver.S3Backend")
	}
	b.client = s3.New(sess)
	return nil
}

func (b *S3Backend) key(p path.Path) string {
	return p.String()
}

func (b *S3Backend) get(p path.Path) ([]byte, error) {
	if err := b.ensureClient(); err != nil {
		return nil, err
	}
	output, err := b.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		if rfErr, ok := err.(awserr.RequestFailure); ok && rfErr.StatusCode() == http.StatusNotFound {
			return nil, ErrNotExist
		}
		return nil, err
	}
	defer func() { _ = output.Body.Close() }()
	return ioutil.ReadAll(output.Body)
}

func (b *S3Backend) put(p path.Path, contents []byte) error {
	if err := b.ensureClient(); err != nil {
		return err
	}
	_, err := b.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
		Body:   bytes.NewReader(contents),
	})
	return err
}

func (b *S3Backend) Size(p path.Path) (int64, error) {
	contents, err := b.get(p)
	if err != nil {
		return 0, err
	}
	return int64(len(contents)), nil
}

func (b *S3Backend) ReadAt(p path.Path, offset int64, length int32) ([]byte, error) {
	contents, err := b.get(p)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(contents)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(contents)) {
		end = int64(len(contents))
	}
	return contents[offset:end], nil
}

func (b *S3Backend) WriteAt(p path.Path, offset int64, data []byte) error {
	contents, err := b.get(p)
	if err != nil && err != ErrNotExist {
		return err
	}
	need := int(offset) + len(data)
	if need > len(contents) {
		grown := make([]byte, need)
		copy(grown, contents)
		contents = grown
	}
	copy(contents[offset:], data)
	return b.put(p, contents)
}

func (b *S3Backend) Create(p path.Path) error {
	return b.put(p, nil)
}

func (b *S3Backend) Delete(p path.Path) error {
	if err := b.ensureClient(); err != nil {
		return err
	}
	_, err := b.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	return err
}

func (b *S3Backend) ForEach(fn func(path.Path) error) error {
	if err := b.ensureClient(); err != nil {
		return err
	}
	input := &s3.ListObjectsInput{Bucket: aws.String(b.bucket)}
	for {
		output, err := b.client.ListObjects(input)
		if err != nil {
			return err
		}
		for _, o := range output.Contents {
			if o.Key == nil {
				continue
			}
			p, err := path.Parse(*o.Key)
			if err != nil {
				return fmt.Errorf("storageserver.S3Backend.ForEach: %w", err)
			}
			if err := fn(p); err != nil {
				return err
			}
		}
		if output.NextMarker == nil {
			return nil
		}
		input.Marker = output.NextMarker
	}
}
