package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pantrychef/backend/config"
)

// IngredientExtractor reads a pantry photo and lists the ingredients in it.
type IngredientExtractor interface {
	ExtractPantryIngredients(ctx context.Context, photoURL string) ([]string, error)
}

// PhotoAnalysis is the result of a pantry photo upload.
type PhotoAnalysis struct {
	PhotoKey    string   `json:"photo_key"`
	Ingredients []string `json:"ingredients"`
}

// PhotoService stores pantry photos in S3 and extracts the visible
// ingredients so they can feed a generation request.
type PhotoService struct {
	s3Config  *config.S3Config
	extractor IngredientExtractor
	logger    zerolog.Logger
}

// NewPhotoService creates a new PhotoService instance.
func NewPhotoService(s3Config *config.S3Config, extractor IngredientExtractor, logger zerolog.Logger) *PhotoService {
	return &PhotoService{
		s3Config:  s3Config,
		extractor: extractor,
		logger:    logger,
	}
}

// photoExtension maps an image content type to the object key suffix.
// Unrecognized types get no extension; the stored ContentType still
// identifies them.
func photoExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// AnalyzePantryPhoto uploads the photo and returns the ingredients the
// model can identify in it. The photo is shared with the model through a
// short lived presigned URL; the bucket stays private.
func (s *PhotoService) AnalyzePantryPhoto(ctx context.Context, userID uuid.UUID, photoData []byte, contentType string) (*PhotoAnalysis, error) {
	key := fmt.Sprintf("pantry-photos/%s/%s%s", userID, uuid.New(), photoExtension(contentType))

	_, err := s.s3Config.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(photoData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload pantry photo: %w", err)
	}

	photoURL, err := s.s3Config.GeneratePresignedURL(ctx, key, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to presign pantry photo: %w", err)
	}

	ingredients, err := s.extractor.ExtractPantryIngredients(ctx, photoURL)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("photo_key", key).
		Int("ingredients", len(ingredients)).
		Msg("pantry photo analyzed")

	return &PhotoAnalysis{
		PhotoKey:    key,
		Ingredients: ingredients,
	}, nil
}
