package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// Environment variables consulted by `sts verify`.
const (
	EnvAccessKeyID     = "VI_STS_ACCESS_KEY_ID"
	EnvAccessKeySecret = "VI_STS_ACCESS_KEY_SECRET"
)

const (
	// DefaultDurationSeconds is the lifetime requested for verification
	// credentials.
	DefaultDurationSeconds = 1000
	sessionNamePrefix      = "vitool_verify_"
)

type AssumeRoleInput struct {
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	RoleARN         string
	DurationSeconds int32
}

// Credentials are the temporary keys returned by a successful AssumeRole.
type Credentials struct {
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
	Expiration      time.Time
	RequestID       string
}

// AssumeRoleError is a rejected AssumeRole call.
type AssumeRoleError struct {
	Code      string
	Message   string
	RequestID string
	Err       error
}

func (e *AssumeRoleError) Error() string {
	return fmt.Sprintf("assume role failed: %s: %s", e.Code, e.Message)
}

func (e *AssumeRoleError) Unwrap() error { return e.Err }

// Verifier exchanges long-lived keys for temporary credentials.
type Verifier interface {
	AssumeRole(ctx context.Context, in AssumeRoleInput) (*Credentials, error)
}

// STSVerifier implements Verifier against AWS STS.
type STSVerifier struct {
	Endpoint string
	Verbose  bool
	Logger   *slog.Logger
	// Now defaults to time.Now and names the role session.
	Now func() time.Time
}

// SessionName returns the role session name for t.
func SessionName(t time.Time) string {
	return sessionNamePrefix + strconv.FormatInt(t.UnixMilli(), 10)
}

func (v *STSVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// AssumeRole implements Verifier. Every service rejection is returned as an
// *AssumeRoleError.
func (v *STSVerifier) AssumeRole(ctx context.Context, in AssumeRoleInput) (*Credentials, error) {
	cfg, err := LoadConfig(ctx, ConfigOptions{
		Region:          in.Region,
		AccessKeyID:     in.AccessKeyID,
		SecretAccessKey: in.AccessKeySecret,
		Endpoint:        v.Endpoint,
		Verbose:         v.Verbose,
		Logger:          v.Logger,
	})
	if err != nil {
		return nil, err
	}

	duration := in.DurationSeconds
	if duration <= 0 {
		duration = DefaultDurationSeconds
	}

	out, err := sts.NewFromConfig(cfg).AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(in.RoleARN),
		RoleSessionName: aws.String(SessionName(v.now())),
		DurationSeconds: aws.Int32(duration),
	})
	if err != nil {
		return nil, toAssumeRoleError(err)
	}
	if out.Credentials == nil {
		return nil, errors.New("assume role returned no credentials")
	}

	creds := &Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		AccessKeySecret: aws.ToString(out.Credentials.SecretAccessKey),
		SecurityToken:   aws.ToString(out.Credentials.SessionToken),
		Expiration:      aws.ToTime(out.Credentials.Expiration),
	}
	creds.RequestID, _ = awsmiddleware.GetRequestIDMetadata(out.ResultMetadata)
	return creds, nil
}

func toAssumeRoleError(err error) error {
	ae := &AssumeRoleError{Err: err}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	ae.Code = apiErr.ErrorCode()
	ae.Message = apiErr.ErrorMessage()

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		ae.RequestID = respErr.ServiceRequestID()
	}
	return ae
}

// WriteReport prints the SUCCESS or FAILURE block for a verification. Errors
// that are not service rejections are returned unchanged.
func WriteReport(w io.Writer, creds *Credentials, err error) error {
	if err != nil {
		var ae *AssumeRoleError
		if !errors.As(err, &ae) {
			return err
		}
		_, werr := fmt.Fprintf(w, "FAILURE\n\tError code: %s\n\tError message: %s\n\tRequestId: %s\n",
			ae.Code, ae.Message, ae.RequestID)
		return werr
	}

	_, werr := fmt.Fprintf(w, "SUCCESS\n"+
		"\tExpiration: %s\n"+
		"\tAccess Key Id: %s\n"+
		"\tAccess Key Secret: %s\n"+
		"\tSecurity Token: %s\n"+
		"\tRequestId: %s\n",
		creds.Expiration.UTC().Format(time.RFC3339),
		creds.AccessKeyID,
		creds.AccessKeySecret,
		creds.SecurityToken,
		creds.RequestID,
	)
	return werr
}
