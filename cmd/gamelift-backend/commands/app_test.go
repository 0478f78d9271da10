package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/savaki/gamelift-backend/internal/di"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/provider"
	"github.com/savaki/gamelift-backend/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu     sync.Mutex
	calls  []string
	failOn resource.Kind
}

func (f *fakeClient) Create(_ context.Context, kind resource.Kind, _ provider.Input) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create "+kind.CLIName())
	if kind == f.failOn {
		return nil, &errors.ProviderError{Kind: kind.String(), Operation: provider.OperationCreate, Code: "LimitExceededException", Err: errors.New("limit exceeded")}
	}
	return map[string]string{"id": kind.CLIName() + "-1234"}, nil
}

func (f *fakeClient) Delete(_ context.Context, kind resource.Kind, _ provider.Input) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete "+kind.CLIName())
	return nil
}

type harness struct {
	client   *fakeClient
	stateDir string
	buildDir string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		client:   &fakeClient{},
		stateDir: t.TempDir(),
		buildDir: t.TempDir(),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	var buf bytes.Buffer
	app := NewApp(zerolog.Nop(), di.WithProviders(
		func() aws.Config { return aws.Config{Region: "us-west-2"} },
		func(provider.Clients) provider.Client { return h.client },
	))
	app.Writer = &buf

	base := []string{
		"gamelift-backend",
		"--namespace", "unit",
		"--state-dir", h.stateDir,
		"--set", "build.root=" + h.buildDir,
	}
	err := app.RunContext(context.Background(), append(base, args...))
	return buf.String(), err
}

func TestCreate(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "create", "fleet")
	require.NoError(t, err)
	assert.Equal(t, []string{"create build", "create fleet"}, h.client.calls)
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "unit-fleet")

	out, err = h.run(t, "--json", "create", "fleet")
	require.NoError(t, err)
	assert.Len(t, h.client.calls, 2)

	var result resource.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "unit", result.Namespace)
	require.Len(t, result.Outcomes, 2)
	for _, o := range result.Outcomes {
		assert.Equal(t, resource.OutcomeSkippedPresent, o.Type)
	}
}

func TestCreate_Failure(t *testing.T) {
	h := newHarness(t)
	h.client.failOn = resource.Fleet

	out, err := h.run(t, "create", "fleet")
	require.Error(t, err)

	var pe *errors.ProviderError
	assert.True(t, errors.As(err, &pe))
	assert.Contains(t, out, "FAILED")
}

func TestCreate_UnknownKind(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "create", "database")
	assert.ErrorIs(t, err, errors.ErrUnknownKind)
	assert.Empty(t, h.client.calls)
}

func TestDeleteAll(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "create", "fleet")
	require.NoError(t, err)

	out, err := h.run(t, "delete", "all")
	require.NoError(t, err)
	assert.Equal(t, []string{"create build", "create fleet", "delete fleet", "delete build"}, h.client.calls)
	assert.Contains(t, out, "DELETED")
	assert.Contains(t, out, "SKIPPED_ALREADY_ABSENT")
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "create", "build")
	require.NoError(t, err)

	out, err := h.run(t, "--json", "status")
	require.NoError(t, err)

	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "unit", view.Namespace)
	require.Len(t, view.Records, 1)
	assert.Equal(t, resource.Build, view.Records[0].Kind)
	assert.Equal(t, "build-1234", view.Records[0].ID("id"))

	out, err = h.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ABSENT")
}

func TestGraph(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: formatDOT, want: "Build -> Fleet;"},
		{format: formatMermaid, want: "Build --> Fleet"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			h := newHarness(t)

			out, err := h.run(t, "graph", "--format", tt.format)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		_, err := newHarness(t).run(t, "graph", "--format", "svg")
		assert.Error(t, err)
	})
}

func TestStateInit(t *testing.T) {
	h := newHarness(t)
	h.stateDir = h.stateDir + "/nested"

	_, err := h.run(t, "state", "init")
	require.NoError(t, err)
	assert.DirExists(t, h.stateDir)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := newHarness(t).run(t, "--log-level", "loud", "status")
	assert.Error(t, err)
}
