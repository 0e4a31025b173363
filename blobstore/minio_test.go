package blobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinioStoreAppliesDefaultExpiry(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{
		Endpoint:  "minio.internal:9000",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, s.expiry)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://my-bucket/docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "docs/report.pdf", key)
}

func TestParseS3URLRejectsWrongScheme(t *testing.T) {
	_, _, err := parseS3URL("https://my-bucket/docs/report.pdf")
	assert.Error(t, err)
}

func TestParseS3URLRejectsMissingKey(t *testing.T) {
	_, _, err := parseS3URL("s3://my-bucket")
	assert.Error(t, err)
}
