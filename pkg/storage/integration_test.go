//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/DrSkyle/vitool/pkg/credentials"
)

// Requires Docker.
func TestS3Store_LocalStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err)

	cfg, err := credentials.LoadConfig(ctx, credentials.ConfigOptions{
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        endpoint,
	})
	require.NoError(t, err)

	store := NewS3Store(cfg, "vitool-exports")
	_, err = store.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("vitool-exports")})
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "q/rows.json", []byte("1 row(s) returned\n")))
	got, err := store.Get(ctx, "q/rows.json")
	require.NoError(t, err)
	require.Equal(t, "1 row(s) returned\n", string(got))
}
