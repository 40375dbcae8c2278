package adapters

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/core"
	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
)

const (
	s3EndpointProperty  = "s3.endpoint"
	s3RegionProperty    = "s3.region"
	s3AccessKeyProperty = "s3.access-key"
	s3SecretKeyProperty = "s3.secret-key"
	s3PathStyleProperty = "s3.path-style"
	defaultS3Region     = "us-east-1"
)

// S3ObjectStoreAdapter lists and reads objects through the AWS SDK. The
// s3.* properties select a custom endpoint (MinIO, LocalStack) and static
// credentials; otherwise the default credential chain applies.
type S3ObjectStoreAdapter struct {
	client *s3.Client
}

var _ ports.ObjectStorePort = S3ObjectStoreAdapter{}

func NewS3ObjectStoreAdapter(ctx context.Context, properties core.PropertyLookup) (S3ObjectStoreAdapter, error) {
	loadOptions := []func(*config.LoadOptions) error{
		config.WithRegion(properties.GetOrDefault(s3RegionProperty, defaultS3Region)),
	}
	accessKey := properties.Get(s3AccessKeyProperty)
	if strings.TrimSpace(accessKey) != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, properties.Get(s3SecretKeyProperty), "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return S3ObjectStoreAdapter{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to load s3 configuration").
			WithCause(err)
	}
	endpoint := strings.TrimSpace(properties.Get(s3EndpointProperty))
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		if properties.Bool(s3PathStyleProperty) {
			o.UsePathStyle = true
		}
	})
	return S3ObjectStoreAdapter{client: client}, nil
}

func (a S3ObjectStoreAdapter) List(ctx context.Context, bucket string, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s3Error("failed to list objects", err)
		}
		for _, object := range page.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	return keys, nil
}

func (a S3ObjectStoreAdapter) Get(ctx context.Context, bucket string, key string) (io.ReadCloser, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s3Error("failed to get object "+key, err)
	}
	return out.Body, nil
}

func s3Error(message string, err error) error {
	code := errbuilder.CodeInternal
	var noBucket *s3types.NoSuchBucket
	var noKey *s3types.NoSuchKey
	var apiErr smithy.APIError
	switch {
	case errors.As(err, &noBucket), errors.As(err, &noKey):
		code = errbuilder.CodeNotFound
	case errors.As(err, &apiErr) && (apiErr.ErrorCode() == "AccessDenied" || apiErr.ErrorCode() == "InvalidAccessKeyId"):
		code = errbuilder.CodePermissionDenied
	}
	return errbuilder.New().
		WithCode(code).
		WithMsg(message).
		WithCause(err)
}
