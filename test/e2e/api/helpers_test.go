package api_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
)

/*
 * Common constants and helper functions for the API end-to-end tests.
 * This includes container setup, account helpers, and assertions.
 */

const (
	testImageName = "webtoon-api-test:latest"

	adminEmail    = "admin@example.com"
	adminPassword = "Admin123!secret"
	userPassword  = "Reader123!secret"
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building Webtoon API Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Webtoon API Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/api/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

func baseEnv() map[string]string {
	return map[string]string{
		"APP_ENV":        "test",
		"LOG_LEVEL":      "info",
		"LOG_FORMAT":     "json",
		"AUTH_ISSUER":    "webtoon-e2e",
		"AUTH_ALGORITHM": "EdDSA",
		"ADMIN_EMAIL":    adminEmail,
	}
}

// relaxedLimits raise the limits so tests making many rapid requests are
// not throttled.
func relaxedLimits(env map[string]string) map[string]string {
	for _, profile := range []string{"STRICT", "MODERATE", "LENIENT"} {
		env["RATELIMIT_"+profile+"_REQUESTS"] = "1000"
		env["RATELIMIT_"+profile+"_WINDOW_SEC"] = "60"
		env["RATELIMIT_"+profile+"_BURST"] = "1000"
	}
	return env
}

// setupAPIContainer starts the API with relaxed rate limits and returns a
// client for it.
func setupAPIContainer(t *testing.T) *authsdk.SDKClient {
	t.Helper()
	return startContainer(t, relaxedLimits(baseEnv()))
}

// setupAPIContainerWithDefaultRateLimits keeps the production limits. Only
// the rate limit tests should need it.
func setupAPIContainerWithDefaultRateLimits(t *testing.T) *authsdk.SDKClient {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) *authsdk.SDKClient {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return authsdk.NewSDKClient(fmt.Sprintf("http://%s:%s", host, mappedPort.Port()))
}

// registerAdmin registers the configured admin email, which is granted the
// admin role.
func registerAdmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	session, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:       adminEmail,
		Password:    adminPassword,
		DisplayName: "Administrator",
	})
	require.NoError(t, err, "admin registration should succeed")
	return session
}

func registerUser(t *testing.T, client *authsdk.SDKClient, email string) *authsdk.Session {
	t.Helper()

	session, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:       email,
		Password:    userPassword,
		DisplayName: "Reader",
	})
	require.NoError(t, err, "registration should succeed")
	return session
}

// assertAPIError checks that err is an API error with the given status and code.
func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected an API error, got: %v", err)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status: %v", err)
	if code != "" {
		require.Equal(t, code, apiErr.Code)
	}
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
