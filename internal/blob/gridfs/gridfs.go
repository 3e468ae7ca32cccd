// Package gridfs stores capsule media in MongoDB GridFS. Objects are
// served back through the service's media route, so Put returns a URL
// under baseURL rather than a storage-provider link.
package gridfs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/siminyang/aboutxtime/internal/blob"
)

type Store struct {
	bucket  *gridfs.Bucket
	baseURL string
}

var (
	_ blob.Store  = (*Store)(nil)
	_ blob.Reader = (*Store)(nil)
)

// New connects to MongoDB and opens a GridFS bucket in the given database.
// baseURL is the externally visible prefix for the media route.
func New(ctx context.Context, uri, database, baseURL string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	bucket, err := gridfs.NewBucket(client.Database(database))
	if err != nil {
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	return &Store{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	// One file per object path; delete any previous upload first so a
	// re-submit overwrites instead of accumulating revisions.
	if err := s.deleteByName(ctx, path); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"contentType": contentType,
		"uploadedAt":  time.Now().UTC(),
	})
	stream, err := s.bucket.OpenUploadStream(path, opts)
	if err != nil {
		return "", fmt.Errorf("gridfs upload %s: %w", path, err)
	}
	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Close()
		return "", fmt.Errorf("gridfs write %s: %w", path, err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("gridfs close %s: %w", path, err)
	}
	return s.baseURL + "/api/media/" + path, nil
}

func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, string, error) {
	stream, err := s.bucket.OpenDownloadStreamByName(path)
	if err != nil {
		return nil, "", fmt.Errorf("gridfs open %s: %w", path, err)
	}
	contentType := "application/octet-stream"
	if file := stream.GetFile(); file != nil && file.Metadata != nil {
		var md bson.M
		if err := bson.Unmarshal(file.Metadata, &md); err == nil {
			if ct, ok := md["contentType"].(string); ok && ct != "" {
				contentType = ct
			}
		}
	}
	return stream, contentType, nil
}

func (s *Store) deleteByName(ctx context.Context, path string) error {
	cursor, err := s.bucket.Find(bson.M{"filename": path})
	if err != nil {
		return fmt.Errorf("gridfs find %s: %w", path, err)
	}
	defer func() { _ = cursor.Close(ctx) }()
	for cursor.Next(ctx) {
		var doc struct {
			ID interface{} `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		if err := s.bucket.Delete(doc.ID); err != nil {
			return fmt.Errorf("gridfs delete %s: %w", path, err)
		}
	}
	return cursor.Err()
}
