package vault

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"notetree/internal/tree"
)

// S3Vault stores backup artifacts in an S3 bucket. Keys are prefixed with
// the configured key prefix, so one bucket can hold the artifacts of
// several machines.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault creates an S3-backed vault. When accessKey and secretKey are
// set they are used as static credentials; otherwise the default AWS
// credential chain (environment, shared config, instance role) applies.
func NewS3Vault(ctx context.Context, name, bucket, prefix, region, accessKey, secretKey string) (*S3Vault, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 vault requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put uploads an artifact under key. The uploader handles multipart
// uploads, so large backup files stream without buffering in memory.
func (v *S3Vault) Put(key string, r io.Reader, size int64) error {
	if key == "" {
		return fmt.Errorf("invalid artifact key: %q", key)
	}

	_, err := v.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", v.bucket, key, err)
	}
	return nil
}

// Get retrieves the artifact stored under key and writes it to w.
func (v *S3Vault) Get(key string, w io.Writer) error {
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 download %s/%s: %w", v.bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("s3 read body %s/%s: %w", v.bucket, key, err)
	}
	return nil
}

// List returns the keys stored under the given prefix.
func (v *S3Vault) List(prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(v.objectKey(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", v.bucket, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, v.stripPrefix(aws.ToString(obj.Key)))
		}
	}
	return keys, nil
}

// ValidateSetup verifies that the bucket exists and is reachable with the
// current credentials.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) objectKey(key string) string {
	if v.prefix == "" {
		return key
	}
	return path.Join(v.prefix, key)
}

func (v *S3Vault) stripPrefix(objectKey string) string {
	if v.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, v.prefix+"/")
}

// Compile-time check that S3Vault implements tree.Vault
var _ tree.Vault = (*S3Vault)(nil)
