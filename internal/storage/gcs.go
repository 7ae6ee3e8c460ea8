package storage

import (
	"context"
	"errors"
	"io"

	gcs "cloud.google.com/go/storage"
)

type GCS struct {
	bucketName string
	bucket     *gcs.BucketHandle
	publicURL  string
}

// NewGCS uses application default credentials. An empty publicURL serves
// objects from storage.googleapis.com.
func NewGCS(ctx context.Context, bucketName, publicURL string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if publicURL == "" || publicURL[0] == '/' {
		publicURL = "https://storage.googleapis.com/" + bucketName
	}
	return &GCS{
		bucketName: bucketName,
		bucket:     client.Bucket(bucketName),
		publicURL:  publicURL,
	}, nil
}

func (s *GCS) Put(ctx context.Context, name, contentType string, r io.Reader, _ int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	_, err := io.Copy(w, r)
	errClose := w.Close()
	if err != nil {
		return err
	}
	return errClose
}

func (s *GCS) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := s.bucket.Object(name).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCS) URL(name string) string {
	return joinURL(s.publicURL, name)
}
