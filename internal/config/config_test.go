package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HEYGEN_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.HeyGen.APIKey)
	assert.Equal(t, "https://api.heygen.com", cfg.HeyGen.APIBaseURL)
	assert.Equal(t, "Ann_Therapist_public", cfg.Avatar.AvatarID)
	assert.Equal(t, "b6ad717dc8cd472dafe383e9c793e14c", cfg.Avatar.KnowledgeID)
	assert.Equal(t, "uk", cfg.Avatar.Language)
	assert.Equal(t, "medium", cfg.Avatar.Quality)
	assert.Equal(t, 1.0, cfg.Avatar.VoiceRate)
	assert.Equal(t, "soothing", cfg.Avatar.VoiceEmotion)
	assert.False(t, cfg.Avatar.DisableIdleTimeout)
	assert.Equal(t, "127.0.0.1:3000", cfg.Proxy.ListenAddr)
	assert.Equal(t, "http://127.0.0.1:3000", cfg.Proxy.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRespectsOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HEYGEN_API_KEY", " secret ")
	t.Setenv("HEYGEN_API_BASE", "http://vendor.local")
	t.Setenv("AVATAR_ID", "Other_public")
	t.Setenv("AVATAR_LANGUAGE", "en")
	t.Setenv("AVATAR_QUALITY", "HIGH")
	t.Setenv("AVATAR_VOICE_RATE", "0.8")
	t.Setenv("AVATAR_VOICE_EMOTION", "friendly")
	t.Setenv("AVATAR_DISABLE_IDLE_TIMEOUT", "yes")
	t.Setenv("PROXY_LISTEN_ADDR", ":8088")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.HeyGen.APIKey)
	assert.Equal(t, "http://vendor.local", cfg.HeyGen.APIBaseURL)
	assert.Equal(t, "Other_public", cfg.Avatar.AvatarID)
	assert.Equal(t, "en", cfg.Avatar.Language)
	assert.Equal(t, "high", cfg.Avatar.Quality)
	assert.Equal(t, 0.8, cfg.Avatar.VoiceRate)
	assert.Equal(t, "friendly", cfg.Avatar.VoiceEmotion)
	assert.True(t, cfg.Avatar.DisableIdleTimeout)
	assert.Equal(t, "http://127.0.0.1:8088", cfg.Proxy.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidValuesFallback(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AVATAR_QUALITY", "ultra")
	t.Setenv("AVATAR_VOICE_RATE", "fast")
	t.Setenv("AVATAR_VOICE_EMOTION", "angry")
	t.Setenv("AVATAR_DISABLE_IDLE_TIMEOUT", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "medium", cfg.Avatar.Quality)
	assert.Equal(t, 1.0, cfg.Avatar.VoiceRate)
	assert.Equal(t, "soothing", cfg.Avatar.VoiceEmotion)
	assert.False(t, cfg.Avatar.DisableIdleTimeout)
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := chdirTemp(t)
	contents := "HEYGEN_API_KEY=from-dotenv\nAVATAR_LANGUAGE=de\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0o600))

	t.Setenv("HEYGEN_API_KEY", "")
	require.NoError(t, os.Unsetenv("HEYGEN_API_KEY"))
	t.Setenv("AVATAR_LANGUAGE", "fr")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.HeyGen.APIKey)
	assert.Equal(t, "fr", cfg.Avatar.Language)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	contents := "AVATAR_ID: File_Avatar\nPROXY_BASE_URL: http://proxy.example/\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatarchat.yaml"), []byte(contents), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "File_Avatar", cfg.Avatar.AvatarID)
	assert.Equal(t, "http://proxy.example", cfg.Proxy.BaseURL)
}
