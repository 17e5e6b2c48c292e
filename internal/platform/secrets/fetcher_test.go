package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	errors map[string]error
	calls  map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values: map[string]string{},
		errors: map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	if err, ok := f.errors[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/sf-dev/secrets/redis-url/versions/latest"
	client.values[resource] = "redis://cache:6379/0"

	fetcher, err := NewFetcher(ctx, withClient(client), WithProject("sf-dev"), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, "secret://redis-url")
		require.NoError(t, err)
		assert.Equal(t, "redis://cache:6379/0", got)
	}
	assert.Equal(t, 1, client.callCount(resource))
}

func TestResolveHonoursProjectAndVersion(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values["projects/other/secrets/creds/versions/3"] = "pinned"

	fetcher, err := NewFetcher(ctx, withClient(client), WithProject("sf-dev"))
	require.NoError(t, err)

	got, err := fetcher.ResolveSecret(ctx, "sm://creds?version=3&project=other")
	require.NoError(t, err)
	assert.Equal(t, "pinned", got)
}

func TestResolveFallsBackWhenSecretManagerDenies(t *testing.T) {
	ctx := context.Background()
	path := writeFallback(t, "secret://redis-url=redis://local:6379/2\n")
	client := newFakeSecretClient()
	client.errors["projects/sf-dev/secrets/redis-url/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx, withClient(client), WithProject("sf-dev"), WithFallbackFile(path))
	require.NoError(t, err)

	got, err := fetcher.Resolve(ctx, "secret://redis-url")
	require.NoError(t, err)
	assert.Equal(t, "redis://local:6379/2", got)
}

func TestResolveWithoutProjectUsesFallbackOnly(t *testing.T) {
	ctx := context.Background()
	path := writeFallback(t, "# local overrides\nsecret://firebase/credentials=/tmp/creds.json\n")

	fetcher, err := NewFetcher(ctx, WithFallbackFile(path))
	require.NoError(t, err)

	got, err := fetcher.Resolve(ctx, "sm://firebase/credentials")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/creds.json", got)

	_, err = fetcher.Resolve(ctx, "secret://unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolvePropagatesNonFallbackErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errors["projects/sf-dev/secrets/bad/versions/latest"] = status.Error(codes.InvalidArgument, "bad name")

	fetcher, err := NewFetcher(ctx, withClient(client), WithProject("sf-dev"), WithFallbackFile(""))
	require.NoError(t, err)

	_, err = fetcher.Resolve(ctx, "secret://bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

func TestParseReferenceRejectsInvalidInput(t *testing.T) {
	for _, ref := range []string{"", "https://example.com/x", "secret://"} {
		_, err := parseReference(ref)
		assert.Error(t, err, "ref %q", ref)
	}
}

func TestResolveFallbackSplitsOnFirstEquals(t *testing.T) {
	ctx := context.Background()
	path := writeFallback(t, "secret://db-dsn = host=db user=app\nsecret://cache-url=redis://app:pw@cache:6379/1\nnot-a-line\n")

	fetcher, err := NewFetcher(ctx, WithFallbackFile(path))
	require.NoError(t, err)

	got, err := fetcher.Resolve(ctx, "secret://db-dsn")
	require.NoError(t, err)
	assert.Equal(t, "host=db user=app", got)

	got, err = fetcher.Resolve(ctx, "secret://cache-url")
	require.NoError(t, err)
	assert.Equal(t, "redis://app:pw@cache:6379/1", got)
}
