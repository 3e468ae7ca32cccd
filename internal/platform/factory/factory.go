// Package factory constructs the driver-selected adapters from config.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/siminyang/aboutxtime/internal/blob"
	"github.com/siminyang/aboutxtime/internal/blob/gcs"
	"github.com/siminyang/aboutxtime/internal/blob/gridfs"
	"github.com/siminyang/aboutxtime/internal/blob/memblob"
	"github.com/siminyang/aboutxtime/internal/config"
	"github.com/siminyang/aboutxtime/internal/notify"
	"github.com/siminyang/aboutxtime/internal/store"
	"github.com/siminyang/aboutxtime/internal/store/memstore"
	"github.com/siminyang/aboutxtime/internal/store/postgres"
)

// NewStore builds the document store selected by cfg.DocStore.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.DocStore {
	case "memory":
		log.Info().Msg("using in-memory document store")
		return memstore.New(), nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Bootstrap(ctx, db); err != nil {
			return nil, fmt.Errorf("bootstrap postgres schema: %w", err)
		}
		log.Info().Msg("using postgres document store")
		return postgres.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unsupported DOC_STORE: %s", cfg.DocStore)
	}
}

// NewBlobStore builds the media store selected by cfg.BlobStore.
func NewBlobStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (blob.Store, error) {
	switch cfg.BlobStore {
	case "memory":
		log.Info().Msg("using in-memory blob store")
		return memblob.New(cfg.PublicBaseURL), nil
	case "gridfs":
		s, err := gridfs.New(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("open gridfs: %w", err)
		}
		log.Info().Str("database", cfg.MongoDatabase).Msg("using gridfs blob store")
		return s, nil
	case "gcs":
		s, err := gcs.New(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("open gcs: %w", err)
		}
		log.Info().Str("bucket", cfg.GCSBucket).Msg("using gcs blob store")
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported BLOB_STORE: %s", cfg.BlobStore)
	}
}

// NewNotifier builds the push notifier selected by cfg.PushStore.
func NewNotifier(ctx context.Context, cfg *config.Config, log zerolog.Logger) (notify.Notifier, error) {
	switch cfg.PushStore {
	case "none":
		return notify.Nop{}, nil
	case "fcm":
		n, err := notify.NewFCM(ctx)
		if err != nil {
			return nil, fmt.Errorf("init fcm: %w", err)
		}
		log.Info().Msg("using fcm push notifier")
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported PUSH: %s", cfg.PushStore)
	}
}
