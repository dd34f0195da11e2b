// internal/infra/secrets/secret_provider_sm.go
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrSecretNotConfigured = errors.New("secret_provider: not configured")
	ErrSecretNotFound      = errors.New("secret_provider: secret not found")
)

// accessor is the part of the Secret Manager client the provider calls.
type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// Provider resolves secrets from the environment first and Secret Manager second.
// A config value "sm://<secret-id>" always reads the latest version of that secret.
type Provider struct {
	client    accessor
	closer    func() error
	projectID string
}

// NewProvider returns an env-only provider when projectID is empty.
func NewProvider(ctx context.Context, projectID string) (*Provider, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		pid = strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT"))
	}
	if pid == "" {
		return &Provider{}, nil
	}

	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Provider{client: c, closer: c.Close, projectID: pid}, nil
}

const smScheme = "sm://"

// Resolve returns value unless it is an sm:// reference, which is looked up.
func (p *Provider) Resolve(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, smScheme) {
		return value, nil
	}
	return p.Get(ctx, strings.TrimPrefix(value, smScheme))
}

// Get reads the latest version of secretID.
func (p *Provider) Get(ctx context.Context, secretID string) (string, error) {
	if p == nil || p.client == nil {
		return "", ErrSecretNotConfigured
	}
	secretID = strings.TrimSpace(secretID)
	if secretID == "" {
		return "", fmt.Errorf("%w: secret id is empty", ErrSecretNotFound)
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", p.projectID, secretID)
	res, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
		}
		return "", err
	}
	if res == nil || res.Payload == nil {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
	}
	return strings.TrimSpace(string(res.Payload.Data)), nil
}

func (p *Provider) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer()
}
