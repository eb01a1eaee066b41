package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

const (
	defaultPrefix = "voices"
	metaObject    = "meta.json"
)

var errNoSuchKey = errors.New("no such key")

// bucket is the subset of object storage the ObjectStore needs
type bucket interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) iter.Seq2[string, error]
}

// ObjectStore keeps samples in an S3-compatible bucket:
//
//	<prefix>/<id>/audio.<ext>
//	<prefix>/<id>/meta.json
//
// IDs are UUIDs so several processes can share one bucket.
type ObjectStore struct {
	bucket bucket
	prefix string
	opts   options
}

// NewObjectStore connects to the bucket described by cfg and checks that it exists
func NewObjectStore(ctx context.Context, cfg voice.S3Config, opts ...Option) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	log.Debug().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("Connected to sample bucket")

	return newObjectStore(&minioBucket{client: client, name: cfg.Bucket}, cfg.Prefix, opts...), nil
}

func newObjectStore(b bucket, prefix string, opts ...Option) *ObjectStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ObjectStore{bucket: b, prefix: prefix, opts: o}
}

// Save uploads the audio then its metadata
func (s *ObjectStore) Save(ctx context.Context, audio []byte, format voice.Format) (*voice.Sample, error) {
	audio, format, err := prepare(audio, format, s.opts.minDuration)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	sum := sha256.Sum256(audio)
	sample := &voice.Sample{
		Metadata: voice.Metadata{
			ID:        id,
			Format:    format,
			Size:      int64(len(audio)),
			SHA256:    hex.EncodeToString(sum[:]),
			CreatedAt: s.opts.now().UTC(),
		},
		Audio: audio,
	}

	if err := s.bucket.Put(ctx, s.audioKey(id, format.Encoding), audio, format.Encoding.MimeType()); err != nil {
		return nil, fmt.Errorf("failed to upload sample audio: %w", err)
	}

	meta, err := json.Marshal(sample.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sample metadata: %w", err)
	}
	if err := s.bucket.Put(ctx, s.metaKey(id), meta, "application/json"); err != nil {
		_ = s.bucket.Remove(ctx, s.audioKey(id, format.Encoding))
		return nil, fmt.Errorf("failed to upload sample metadata: %w", err)
	}

	log.Debug().Str("id", id).Int64("size", sample.Size).Msg("Uploaded voice sample")
	return sample, nil
}

// Get downloads a sample's metadata and audio
func (s *ObjectStore) Get(ctx context.Context, id string) (*voice.Sample, error) {
	meta, err := s.readMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	audio, err := s.bucket.Get(ctx, s.audioKey(id, meta.Format.Encoding))
	if err != nil {
		if errors.Is(err, errNoSuchKey) {
			return nil, fmt.Errorf("sample %s audio missing: %w", id, voice.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download sample audio: %w", err)
	}

	return &voice.Sample{Metadata: *meta, Audio: audio}, nil
}

// List yields sample metadata ordered by creation time, then ID
func (s *ObjectStore) List(ctx context.Context) iter.Seq2[voice.Metadata, error] {
	return func(yield func(voice.Metadata, error) bool) {
		var metas []voice.Metadata
		for key, err := range s.bucket.Keys(ctx, s.prefix+"/") {
			if err != nil {
				yield(voice.Metadata{}, fmt.Errorf("failed to list samples: %w", err))
				return
			}
			if path.Base(key) != metaObject {
				continue
			}
			id := path.Base(path.Dir(key))
			m, err := s.readMetadata(ctx, id)
			if err != nil {
				if errors.Is(err, voice.ErrNotFound) {
					continue
				}
				if !yield(voice.Metadata{}, err) {
					return
				}
				continue
			}
			metas = append(metas, *m)
		}

		slices.SortFunc(metas, compareMetadata)

		for _, m := range metas {
			if !yield(m, nil) {
				return
			}
		}
	}
}

// Delete removes the metadata then the audio
func (s *ObjectStore) Delete(ctx context.Context, id string) error {
	meta, err := s.readMetadata(ctx, id)
	if err != nil {
		return err
	}
	if err := s.bucket.Remove(ctx, s.metaKey(id)); err != nil {
		return fmt.Errorf("failed to delete sample metadata: %w", err)
	}
	if err := s.bucket.Remove(ctx, s.audioKey(id, meta.Format.Encoding)); err != nil {
		return fmt.Errorf("failed to delete sample audio: %w", err)
	}
	log.Debug().Str("id", id).Msg("Deleted voice sample")
	return nil
}

func (s *ObjectStore) readMetadata(ctx context.Context, id string) (*voice.Metadata, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("sample %q: %w", id, voice.ErrNotFound)
	}

	data, err := s.bucket.Get(ctx, s.metaKey(id))
	if err != nil {
		if errors.Is(err, errNoSuchKey) {
			return nil, fmt.Errorf("sample %s: %w", id, voice.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download sample metadata: %w", err)
	}

	var meta voice.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse sample metadata %s: %w", id, err)
	}
	return &meta, nil
}

func (s *ObjectStore) audioKey(id string, enc voice.Encoding) string {
	return path.Join(s.prefix, id, "audio."+enc.Extension())
}

func (s *ObjectStore) metaKey(id string) string {
	return path.Join(s.prefix, id, metaObject)
}

// minioBucket adapts a minio client to bucket
type minioBucket struct {
	client *minio.Client
	name   string
}

func (b *minioBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.name, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (b *minioBucket) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioErr(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioErr(err)
	}
	return data, nil
}

func (b *minioBucket) Remove(ctx context.Context, key string) error {
	return translateMinioErr(b.client.RemoveObject(ctx, b.name, key, minio.RemoveObjectOptions{}))
}

func (b *minioBucket) Keys(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		// stops the listing goroutine if the caller breaks early
		defer cancel()

		for info := range b.client.ListObjects(ctx, b.name, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if info.Err != nil {
				yield("", info.Err)
				return
			}
			if !yield(info.Key, nil) {
				return
			}
		}
	}
}

func translateMinioErr(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %v", errNoSuchKey, err)
	}
	return err
}
