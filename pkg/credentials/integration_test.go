//go:build integration

package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// Requires Docker.
func TestSTSVerifier_LocalStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err)

	v := &STSVerifier{Endpoint: endpoint}
	creds, err := v.AssumeRole(ctx, AssumeRoleInput{
		Region:          "us-east-1",
		AccessKeyID:     "test",
		AccessKeySecret: "test",
		RoleARN:         "arn:aws:iam::000000000000:role/verify",
	})
	require.NoError(t, err)
	require.NotEmpty(t, creds.AccessKeyID)
	require.NotEmpty(t, creds.SecurityToken)
}
