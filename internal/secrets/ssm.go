// Package secrets resolves credentials kept in AWS SSM Parameter Store.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/m3rciful/relaybot/core/logger"
)

// ssmAPI is satisfied by *ssm.Client.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Store reads decrypted parameters.
type Store struct {
	api ssmAPI
}

func New(api ssmAPI) (*Store, error) {
	if api == nil {
		return nil, errors.New("secrets: api must not be nil")
	}
	return &Store{api: api}, nil
}

// NewFromEnv builds a Store from the default AWS credential chain. An empty
// region defers to AWS_REGION and the shared config.
func NewFromEnv(ctx context.Context, region string) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: load aws config: %w", err)
	}
	return New(ssm.NewFromConfig(cfg))
}

// Get returns the decrypted value of the named parameter.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	if s == nil || s.api == nil {
		return "", errors.New("secrets: store not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: parameter name is required")
	}
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		logger.Warn(ctx, "secrets", "secrets.get",
			slog.String("status", "fail"),
			slog.String("param", name),
			logger.Err(err),
		)
		return "", fmt.Errorf("secrets: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("secrets: parameter %q has no value", name)
	}
	value := strings.TrimSpace(*out.Parameter.Value)
	if value == "" {
		return "", fmt.Errorf("secrets: parameter %q is empty", name)
	}
	logger.Info(ctx, "secrets", "secrets.get",
		slog.String("status", "ok"),
		slog.String("param", name),
	)
	return value, nil
}
