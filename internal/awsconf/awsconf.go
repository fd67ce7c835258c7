// Package awsconf loads the AWS SDK configuration for an effective call
// configuration.
package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/dotcommander/kbagent/internal/config"
)

// Options returns the config loader options for eff. The built-in default
// profile is left to the SDK so credentials from the environment or an
// instance role keep working without a shared config file.
func Options(eff config.Effective) []func(*awsconfig.LoadOptions) error {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(eff.Region),
	}
	if eff.Profile != "" && eff.Profile != config.DefaultProfile {
		opts = append(opts, awsconfig.WithSharedConfigProfile(eff.Profile))
	}
	return opts
}

// Load resolves credentials and region for eff.
func Load(ctx context.Context, eff config.Effective, extra ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, append(Options(eff), extra...)...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config for profile %q: %w", eff.Profile, err)
	}
	return cfg, nil
}
