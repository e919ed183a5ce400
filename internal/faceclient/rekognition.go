package faceclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type rekognitionAPI interface {
	CompareFaces(ctx context.Context, in *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
}

// Rekognition compares faces stored in an S3 bucket with AWS Rekognition.
type Rekognition struct {
	api    rekognitionAPI
	bucket string
}

// NewRekognition builds a Rekognition comparer. Empty credentials fall back
// to the default AWS credential chain.
func NewRekognition(ctx context.Context, region, accessKeyID, secretAccessKey, bucket string) (*Rekognition, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("rekognition config: %w", err)
	}
	return &Rekognition{api: rekognition.NewFromConfig(cfg), bucket: bucket}, nil
}

// CompareFaces compares the largest face in sourceKey with the faces in targetKey.
func (r *Rekognition) CompareFaces(ctx context.Context, sourceKey, targetKey string, threshold float64) (*CompareResult, error) {
	out, err := r.api.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage: &types.Image{S3Object: &types.S3Object{
			Bucket: aws.String(r.bucket),
			Name:   aws.String(sourceKey),
		}},
		TargetImage: &types.Image{S3Object: &types.S3Object{
			Bucket: aws.String(r.bucket),
			Name:   aws.String(targetKey),
		}},
		SimilarityThreshold: aws.Float32(float32(threshold)),
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("rekognition: empty compare response")
	}

	res := &CompareResult{UnmatchedFaces: len(out.UnmatchedFaces)}
	for _, m := range out.FaceMatches {
		if m.Similarity == nil {
			continue
		}
		if sim := float64(*m.Similarity); sim >= threshold {
			res.Matches = append(res.Matches, Match{Similarity: sim})
		}
	}
	return res, nil
}
