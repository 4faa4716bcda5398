package database

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parasum-digital/sku-registro/internal/config"
	"github.com/sirupsen/logrus"
)

// SupabaseClient representa el cliente del storage de Supabase usando S3
type SupabaseClient struct {
	s3Client *s3.Client
	config   *config.SupabaseConfig
	logger   *logrus.Logger
	bucket   string
}

// NewSupabaseClient crea una nueva instancia del cliente de Supabase
func NewSupabaseClient(cfg *config.SupabaseConfig, logger *logrus.Logger) (*SupabaseClient, error) {
	// Configuración S3 apuntando al endpoint de storage de Supabase
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.StorageEndpoint,
			SigningRegion:     cfg.StorageRegion,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}),
		awsconfig.WithRegion(cfg.StorageRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Importante para Supabase
	})

	return &SupabaseClient{
		s3Client: s3Client,
		config:   cfg,
		logger:   logger,
		bucket:   cfg.FotosBucket,
	}, nil
}

// HealthCheck verifica la conexión al storage de Supabase
func (s *SupabaseClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("error checking Supabase storage connection: %w", err)
	}

	return nil
}

// UploadFoto sube la foto de un SKU al bucket y retorna su URL pública
func (s *SupabaseClient) UploadFoto(ctx context.Context, fileName string, fileData []byte) (string, error) {
	reader := bytes.NewReader(fileData)

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(fileName),
		Body:          reader,
		ContentType:   aws.String("image/jpeg"),
		ContentLength: aws.Int64(int64(len(fileData))),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading foto to Supabase storage: %w", err)
	}

	url := s.PublicURL(fileName)

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"file":   fileName,
		"url":    url,
		"size":   len(fileData),
	}).Info("Foto uploaded to Supabase storage")

	return url, nil
}

// PublicURL resuelve la URL pública REST de un objeto del bucket.
// El endpoint S3 sirve para subir, pero el acceso público va por la
// API de objetos de Supabase.
func (s *SupabaseClient) PublicURL(fileName string) string {
	base := strings.TrimSuffix(s.config.URL, "/")
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", base, s.bucket, fileName)
}

// DeleteFoto elimina una foto del bucket
func (s *SupabaseClient) DeleteFoto(ctx context.Context, fileName string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return fmt.Errorf("error deleting foto from Supabase storage: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"file":   fileName,
	}).Info("Foto deleted from Supabase storage")

	return nil
}
