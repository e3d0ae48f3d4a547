package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangodl/pkg/config"
	"github.com/kerbaras/mangodl/pkg/data"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigInitThenSet(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "mangodl", "config.toml")

	out, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = execute(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "--config", path, "config", "set", "settings.language", "IT")
	require.NoError(t, err)
	_, err = execute(t, "--config", path, "config", "set", "settings.volume_length", "8")
	require.NoError(t, err)

	cfg, _, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "it", cfg.Settings.Language)
	assert.Equal(t, 8, cfg.Settings.VolumeLength)
}

func TestConfigSetKeepsFileOnInvalidValue(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[settings]\nformat = \"cbz\"\n")

	_, err := execute(t, "--config", path, "config", "set", "settings.format", "pdf")
	assert.ErrorContains(t, err, "settings.format")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[settings]\nformat = \"cbz\"\n", string(raw))
}

func TestConfigShowMasksPassword(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "[user]\nusername = \"reader\"\npassword = \"hunter2\"\n")

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "reader")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigPath(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "")

	out, err := execute(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path, strings.TrimSpace(out))
}

func TestLogLevelFlagIsValidated(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "")

	_, err := execute(t, "--config", path, "--log-level", "verbose", "config", "path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	out, err := execute(t, "--config", path, "--log-level", "DEBUG", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "debug")
}

func TestSetConfigValue(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, setConfigValue(&cfg, "settings.grayscale", "true"))
	assert.True(t, cfg.Settings.Grayscale)
	require.NoError(t, setConfigValue(&cfg, "Settings.Rate_Limit", "2.5"))
	assert.Equal(t, 2.5, cfg.Settings.RateLimit)
	require.NoError(t, setConfigValue(&cfg, "user.username", "reader"))
	assert.Equal(t, "reader", cfg.User.Username)

	assert.ErrorContains(t, setConfigValue(&cfg, "settings.colour", "red"), "unknown configuration key")
	assert.ErrorContains(t, setConfigValue(&cfg, "settings.page_retries", "many"), "settings.page_retries")
	assert.ErrorContains(t, setConfigValue(&cfg, "settings.volume_length", "0"), "at least 1")
}

func TestListEmptyLibrary(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeConfig(t, "[settings]\nroot_dir = \""+filepath.Join(dir, "manga")+"\"\n"+
		"library_path = \""+filepath.Join(dir, "library.db")+"\"\n")

	out, err := execute(t, "--config", path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No manga in library")
}

func parsedDownloadOptions(t *testing.T, args ...string) (*cobra.Command, *downloadOptions) {
	t.Helper()
	cmd := &cobra.Command{Use: "download"}
	opts := &downloadOptions{}
	opts.register(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, opts
}

func TestDownloadOptionsApply(t *testing.T) {
	home := isolate(t)
	base := config.Default()

	cmd, opts := parsedDownloadOptions(t, "--language", " IT ", "--vollen", "4", "--novolume", "--format", "EPUB", "--folder", "~/books")
	cfg, err := opts.apply(cmd, base)
	require.NoError(t, err)

	assert.Equal(t, "it", cfg.Settings.Language)
	assert.Equal(t, 4, cfg.Settings.VolumeLength)
	assert.False(t, cfg.Settings.Volumize)
	assert.Equal(t, config.FormatEPUB, cfg.Settings.Format)
	assert.Equal(t, filepath.Join(home, "books"), cfg.Settings.RootDir)

	assert.Equal(t, "gb", base.Settings.Language, "base config must stay untouched")
	assert.True(t, base.Settings.Volumize)
}

func TestDownloadOptionsApplyKeepsUnsetFlags(t *testing.T) {
	isolate(t)
	base := config.Default()
	base.Settings.RateLimit = 5

	cmd, opts := parsedDownloadOptions(t)
	cfg, err := opts.apply(cmd, base)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Settings.RateLimit)
	assert.Equal(t, base.Settings.VolumeLength, cfg.Settings.VolumeLength)
}

func TestDownloadOptionsApplyRejects(t *testing.T) {
	isolate(t)

	cmd, opts := parsedDownloadOptions(t, "--vollen", "0")
	_, err := opts.apply(cmd, config.Default())
	assert.ErrorContains(t, err, "--vollen")

	cmd, opts = parsedDownloadOptions(t, "--format", "pdf")
	_, err = opts.apply(cmd, config.Default())
	assert.ErrorContains(t, err, "settings.format")

	cmd, opts = parsedDownloadOptions(t, "--ratelimit", "0")
	_, err = opts.apply(cmd, config.Default())
	assert.ErrorContains(t, err, "rate_limit")
}

func TestDownloadOptionsSelection(t *testing.T) {
	sel, chosen, err := downloadOptions{}.selection()
	require.NoError(t, err)
	assert.False(t, chosen)
	assert.False(t, sel.All)

	sel, chosen, err = downloadOptions{all: true, nameless: true}.selection()
	require.NoError(t, err)
	assert.True(t, chosen)
	assert.True(t, sel.All)
	assert.True(t, sel.Nameless)

	sel, chosen, err = downloadOptions{chapters: "1-3, 7"}.selection()
	require.NoError(t, err)
	assert.True(t, chosen)
	assert.True(t, sel.Contains(data.ChapterNumber(2)))
	assert.True(t, sel.Contains(data.ChapterNumber(7)))
	assert.False(t, sel.Contains(data.ChapterNumber(5)))

	_, _, err = downloadOptions{all: true, chapters: "1"}.selection()
	assert.Error(t, err)

	_, _, err = downloadOptions{chapters: "one"}.selection()
	assert.Error(t, err)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "Kimetsu...", truncateString("Kimetsu no Yaiba", 10))
	assert.Equal(t, "ワンパン...", truncateString("ワンパンマン第二期", 7))
}

func TestJoinInts(t *testing.T) {
	assert.Equal(t, "4, 9", joinInts([]int{4, 9}))
	assert.Equal(t, "", joinInts(nil))
}
