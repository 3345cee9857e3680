package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/DrSkyle/vitool/pkg/credentials"
	"github.com/DrSkyle/vitool/pkg/option"
	"github.com/DrSkyle/vitool/pkg/shell"
)

const GroupSTS = "STS Commands"

type STSOptions struct {
	Region          string
	DurationSeconds int32
}

// RegisterSTS adds `sts verify`.
func RegisterSTS(r *shell.Registry, v credentials.Verifier, prompter option.Prompter, o STSOptions) {
	r.Register(&shell.Command{
		Name:  "sts verify",
		Group: GroupSTS,
		Help:  "Verify the STS configuration by assuming the role and retrieving temporary keys.",
		Flags: func(fs *pflag.FlagSet) {
			fs.String("region", "", "region of the STS endpoint")
			fs.String("access-key-id", "", "access key id, falls back to $"+credentials.EnvAccessKeyID+" then a prompt")
			fs.String("access-key-secret", "", "access key secret, falls back to $"+credentials.EnvAccessKeySecret+" then a prompt")
			fs.String("arn", "", "ARN of the role to assume")
			fs.Int32("duration", 0, "lifetime of the temporary keys in seconds")
		},
		Run: func(ctx context.Context, inv *shell.Invocation) error {
			region, err := option.Value(inv.String("region")).
				OrValue(o.Region).
				Require("`region` cannot be inferred")
			if err != nil {
				return err
			}
			keyID, err := option.Value(inv.String("access-key-id")).
				OrEnv(credentials.EnvAccessKeyID).
				OrInput(prompter, "Enter access key id:", option.Unmasked()).
				Require("`access-key-id` cannot be inferred")
			if err != nil {
				return err
			}
			secret, err := option.Value(inv.String("access-key-secret")).
				OrEnv(credentials.EnvAccessKeySecret).
				OrInput(prompter, "Enter access key secret:").
				Require("`access-key-secret` cannot be inferred")
			if err != nil {
				return err
			}
			arn, err := option.Value(inv.String("arn")).
				OrInput(prompter, "Enter role arn:", option.Unmasked()).
				Require("`arn` cannot be inferred")
			if err != nil {
				return err
			}

			duration, _ := inv.Flags.GetInt32("duration")
			if duration <= 0 {
				duration = o.DurationSeconds
			}

			creds, err := v.AssumeRole(ctx, credentials.AssumeRoleInput{
				Region:          region,
				AccessKeyID:     keyID,
				AccessKeySecret: secret,
				RoleARN:         arn,
				DurationSeconds: duration,
			})
			return credentials.WriteReport(inv.Out, creds, err)
		},
	})
}
