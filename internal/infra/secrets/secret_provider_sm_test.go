package secrets

import (
	"context"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessor struct {
	names []string
	data  map[string]string
}

// the real client must keep satisfying accessor
var _ accessor = (*secretmanager.Client)(nil)

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.names = append(f.names, req.GetName())
	v, ok := f.data[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "no such secret")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte(v + "\n")}}, nil
}

func TestProvider_Resolve(t *testing.T) {
	fa := &fakeAccessor{data: map[string]string{
		"projects/p1/secrets/sendgrid-key/versions/latest": "SG.x",
	}}
	p := &Provider{client: fa, projectID: "p1"}
	ctx := context.Background()

	v, err := p.Resolve(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
	assert.Empty(t, fa.names)

	v, err = p.Resolve(ctx, "sm://sendgrid-key")
	require.NoError(t, err)
	assert.Equal(t, "SG.x", v)

	_, err = p.Resolve(ctx, "sm://missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestProvider_EnvOnly(t *testing.T) {
	p := &Provider{}
	_, err := p.Resolve(context.Background(), "sm://x")
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
	assert.NoError(t, p.Close())
}
