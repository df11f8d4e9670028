// Package realm resolves the Basic-Auth realm announced in challenges,
// optionally from an SSM parameter so it can change without a redeploy.
package realm

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/httpfilters/internal/log"
	"github.com/keithlinneman/httpfilters/internal/xerrors"
)

// ParameterGetter is the subset of *ssm.Client used here.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func NewSSMClient(ctx context.Context, region string) (*ssm.Client, error) {
	var optFns []func(*config.LoadOptions) error
	if region != "" {
		optFns = append(optFns, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, xerrors.Wrap(err, "load AWS config")
	}
	return ssm.NewFromConfig(awsCfg), nil
}

// Fetch reads the realm stored in param.
func Fetch(ctx context.Context, c ParameterGetter, param string) (string, error) {
	out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", param)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", param)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", xerrors.Newf("SSM parameter %s is empty", param)
	}
	if strings.ContainsAny(v, "\"\r\n") {
		return "", xerrors.Newf("SSM parameter %s is not a valid realm", param)
	}
	return v, nil
}

// Resolve returns the realm from param when both c and param are set, and
// fallback otherwise. A failed lookup logs a warning and uses fallback so a
// parameter store outage never blocks startup.
func Resolve(ctx context.Context, L log.Logger, c ParameterGetter, param, fallback string) string {
	if c == nil || param == "" {
		return fallback
	}
	v, err := Fetch(ctx, c, param)
	if err != nil {
		L.Warn(ctx, "realm lookup failed, using configured realm",
			"param", param,
			"realm", fallback,
			"err", err,
		)
		return fallback
	}
	L.Info(ctx, "realm loaded from parameter store", "param", param, "realm", v)
	return v
}
