package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3Args struct {
	Region string `arg:"--region,env:AWS_REGION" help:"AWS region used for s3:// paths"`
}

type Client struct {
	args       S3Args
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	deleter    *s3manager.BatchDelete
}

func NewClient(args S3Args) (Client, error) {
	config := &aws.Config{CredentialsChainVerboseErrors: aws.Bool(true)}
	if args.Region != "" {
		config.Region = aws.String(args.Region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *config,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return Client{}, fmt.Errorf("failed to create aws session: %v", err)
	}
	return Client{
		args:       args,
		client:     s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		deleter:    s3manager.NewBatchDelete(sess),
	}, nil
}

func (c Client) Upload(ctx context.Context, file io.Reader, fileName, bucketName string) error {
	input := s3manager.UploadInput{
		Body:   file,
		Bucket: aws.String(bucketName),
		Key:    aws.String(fileName),
	}
	_, err := c.uploader.UploadWithContext(ctx, &input)
	return err
}

func (c Client) Download(ctx context.Context, fileName, bucketName string) ([]byte, error) {
	input := s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(fileName),
	}
	buf := aws.WriteAtBuffer{}
	_, err := c.downloader.DownloadWithContext(ctx, &buf, &input)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Client) Delete(ctx context.Context, fileName string, bucketName string) error {
	input := s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(fileName),
	}
	objects := []s3manager.BatchDeleteObject{{Object: &input}}
	iterator := s3manager.DeleteObjectsIterator{Objects: objects}
	return c.deleter.Delete(ctx, &iterator)
}

// Exists reports whether an object with exactly this key exists.
func (c Client) Exists(ctx context.Context, fileName, bucketName string) (bool, error) {
	_, err := c.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(fileName),
	})
	if err == nil {
		return true, nil
	}
	if aerr, ok := err.(awserr.RequestFailure); ok && aerr.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// DeletePrefix deletes every object whose key starts with prefix.
func (c Client) DeletePrefix(ctx context.Context, prefix, bucketName string) error {
	iterator := s3manager.NewDeleteListIterator(c.client, &s3.ListObjectsInput{
		Bucket: aws.String(bucketName),
		Prefix: aws.String(prefix),
	})
	return c.deleter.Delete(ctx, iterator)
}

// Listing is the result of listing one "directory" level of a bucket.
type Listing struct {
	Files []string
	Dirs  []string
}

// List returns the keys directly under prefix and the common prefixes
// (sub-directories) one level below it, as full keys.
func (c Client) List(ctx context.Context, prefix, bucketName string) (Listing, error) {
	var ret Listing
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucketName),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}
	err := c.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			ret.Files = append(ret.Files, aws.StringValue(obj.Key))
		}
		for _, p := range page.CommonPrefixes {
			ret.Dirs = append(ret.Dirs, aws.StringValue(p.Prefix))
		}
		return true
	})
	if err != nil {
		return Listing{}, err
	}
	return ret, nil
}

func (c Client) Copy(ctx context.Context, srcKey, dstKey, bucketName string) error {
	_, err := c.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucketName),
		CopySource: aws.String(copySource(bucketName, srcKey)),
		Key:        aws.String(dstKey),
	})
	return err
}

func copySource(bucketName, key string) string {
	segments := strings.Split(bucketName+"/"+key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// ParseURL splits an s3://bucket/key (or s3a://) URL.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url '%s': %v", raw, err)
	}
	if u.Scheme != "s3" && u.Scheme != "s3a" {
		return "", "", fmt.Errorf("invalid s3 url '%s': unsupported scheme '%s'", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 url '%s': missing bucket", raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
