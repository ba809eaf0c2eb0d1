//go:build integration

package s3

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(S3Args{Region: "ap-south-1"})
	require.NoError(t, err)
	contents := "some random text"
	fileName := "churn-test/dir/some_file.txt"
	bucketName := "churn-scoring-integration-test"

	err = c.Upload(ctx, strings.NewReader(contents), fileName, bucketName)
	assert.NoError(t, err)

	found, err := c.Download(ctx, fileName, bucketName)
	assert.NoError(t, err)
	assert.Equal(t, contents, string(found))

	listing, err := c.List(ctx, "churn-test/", bucketName)
	assert.NoError(t, err)
	assert.Equal(t, []string{"churn-test/dir/"}, listing.Dirs)

	err = c.Copy(ctx, fileName, "churn-test/copy.txt", bucketName)
	assert.NoError(t, err)

	err = c.DeletePrefix(ctx, "churn-test/", bucketName)
	assert.NoError(t, err)
}
