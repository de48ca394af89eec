package recordstore

import (
	"os"
	"path/filepath"
	"testing"
)

// TestMain points the SDK at empty shared config files so a developer's ~/.aws or
// AWS_PROFILE cannot change how the fake endpoint is reached.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "s3-recordstore-test")
	if err != nil {
		panic(err)
	}
	for name, file := range map[string]string{
		"AWS_CONFIG_FILE":             "config",
		"AWS_SHARED_CREDENTIALS_FILE": "credentials",
	} {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			panic(err)
		}
		_ = os.Setenv(name, path)
	}
	for _, name := range []string{"AWS_PROFILE", "AWS_DEFAULT_PROFILE", "AWS_CA_BUNDLE", "AWS_ENDPOINT_URL", "AWS_ENDPOINT_URL_S3"} {
		_ = os.Unsetenv(name)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
