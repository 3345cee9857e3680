// Package credentials verifies cloud access keys by assuming a role.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/DrSkyle/vitool/pkg/version"
)

// ConfigOptions controls how an SDK configuration is built.
type ConfigOptions struct {
	Region string
	// AccessKeyID and SecretAccessKey select static credentials. When both
	// are empty the default provider chain is used.
	AccessKeyID     string
	SecretAccessKey string
	Profile         string
	// Endpoint overrides the service endpoint. AWS_ENDPOINT_URL is used when
	// it is empty.
	Endpoint string
	// Verbose logs every API call at Info level.
	Verbose bool
	Logger  *slog.Logger
}

// LoadConfig builds an aws.Config with the vitool user agent and optional
// call logging.
func LoadConfig(ctx context.Context, o ConfigOptions) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(o.Region),
	}
	if o.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(o.Profile))
	}
	if o.AccessKeyID != "" || o.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}

	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("AWS_ENDPOINT_URL")
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}

	cfg.APIOptions = append(cfg.APIOptions, func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("VitoolUserAgent", func(ctx context.Context, input middleware.BuildInput, next middleware.BuildHandler) (
			middleware.BuildOutput, middleware.Metadata, error,
		) {
			if req, ok := input.Request.(*smithyhttp.Request); ok {
				ua := req.Header.Get("User-Agent")
				req.Header.Set("User-Agent", fmt.Sprintf("%s vitool/%s", ua, version.Current))
			}
			return next.HandleBuild(ctx, input)
		}), middleware.After)
	})

	if o.Verbose {
		logger := o.Logger
		if logger == nil {
			logger = slog.Default()
		}
		cfg.APIOptions = append(cfg.APIOptions, func(stack *middleware.Stack) error {
			return stack.Initialize.Add(middleware.InitializeMiddlewareFunc("CallLogger", func(ctx context.Context, input middleware.InitializeInput, next middleware.InitializeHandler) (
				middleware.InitializeOutput, middleware.Metadata, error,
			) {
				logger.Info("AWS API call",
					"service", awsmiddleware.GetServiceID(ctx),
					"operation", middleware.GetOperationName(ctx),
				)
				return next.HandleInitialize(ctx, input)
			}), middleware.Before)
		})
	}

	return cfg, nil
}
