package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"
	"vidyabot_backend/internal/config"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/logger"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// AudioStore persists archived recordings. Keys are slash separated.
type AudioStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
}

// LocalAudioStore writes recordings under Root. Files are served by the /uploads static route.
type LocalAudioStore struct {
	Root string
}

func (s *LocalAudioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	dst := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	// write then rename so readers never see half a file
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return s.URL(key), nil
}

func (s *LocalAudioStore) Remove(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalAudioStore) URL(key string) string {
	return "/uploads/" + key
}

// MemoryAudioStore keeps recordings in process memory. Used when storage.type is memory.
type MemoryAudioStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryAudioStore() *MemoryAudioStore {
	return &MemoryAudioStore{objects: make(map[string][]byte)}
}

func (s *MemoryAudioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return s.URL(key), nil
}

func (s *MemoryAudioStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryAudioStore) URL(key string) string {
	return "memory://" + key
}

// Object returns a stored recording.
func (s *MemoryAudioStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// MinioAudioStore stores recordings in a MinIO bucket.
type MinioAudioStore struct {
	Bucket   string
	Endpoint string
	Secure   bool
	Client   *minio.Client
}

// NewMinioAudioStore connects to MinIO and creates the bucket when missing.
func NewMinioAudioStore(ctx context.Context, cfg *config.StorageConfig) (*MinioAudioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
	}
	return &MinioAudioStore{Bucket: cfg.MinioBucket, Endpoint: cfg.MinioEndpoint, Secure: cfg.MinioUseSSL, Client: client}, nil
}

func (s *MinioAudioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *MinioAudioStore) Remove(ctx context.Context, key string) error {
	return s.Client.RemoveObject(ctx, s.Bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioAudioStore) URL(key string) string {
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.Endpoint, s.Bucket, key)
}

// OSSAudioStore stores recordings in an Aliyun OSS bucket.
type OSSAudioStore struct {
	Endpoint string
	Bucket   *oss.Bucket
}

func NewOSSAudioStore(cfg *config.StorageConfig) (*OSSAudioStore, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, err
	}
	return &OSSAudioStore{Endpoint: cfg.OSSEndpoint, Bucket: bucket}, nil
}

func (s *OSSAudioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := s.Bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *OSSAudioStore) Remove(ctx context.Context, key string) error {
	return s.Bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (s *OSSAudioStore) URL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", s.Bucket.BucketName, s.Endpoint, key)
}

// StorageService archives learner voice recordings.
type StorageService struct {
	Store AudioStore
	now   func() time.Time
}

// NewStorageService picks the store named by storage.type. A remote store
// that cannot be reached at startup falls back to local disk.
func NewStorageService(cfg *config.Config) *StorageService {
	var store AudioStore
	switch cfg.Storage.Type {
	case util.StorageMinio:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s, err := NewMinioAudioStore(ctx, &cfg.Storage)
		cancel()
		if err != nil {
			logger.Log.Warn("minio unavailable, falling back to local storage", zap.Error(err))
		} else {
			store = s
		}
	case util.StorageOSS:
		s, err := NewOSSAudioStore(&cfg.Storage)
		if err != nil {
			logger.Log.Warn("oss unavailable, falling back to local storage", zap.Error(err))
		} else {
			store = s
		}
	case util.StorageMemory:
		store = NewMemoryAudioStore()
	}

	if store == nil {
		store = &LocalAudioStore{Root: cfg.Storage.LocalPath}
	}
	return &StorageService{Store: store, now: time.Now}
}

// ArchiveKey is audio/<student>/<date>/<uuid><ext>.
func (s *StorageService) ArchiveKey(studentID, originalName string) string {
	return path.Join(
		util.AudioArchiveDir,
		studentID,
		s.now().Format(util.DateFormat),
		uuid.New().String()+util.AudioExtension(originalName),
	)
}

// ArchiveAudio stores one recording and returns its URL.
func (s *StorageService) ArchiveAudio(ctx context.Context, studentID string, data []byte, contentType, originalName string) (string, error) {
	return s.Store.Put(ctx, s.ArchiveKey(studentID, originalName), data, contentType)
}
