package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sercha-connect", "config.toml"), store.Path())
}

func TestNewConfigStore_WithNestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep", "path")

	store, err := NewConfigStore(nestedPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nestedPath, "config.toml"), store.Path())

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("user.id", "alice"))
	require.NoError(t, store.Set("import.max_items", int64(250)))
	require.NoError(t, store.Set("scheduler.enabled", true))
	require.NoError(t, store.Set("import.timeout", "90s"))
	require.NoError(t, store.Set("providers.google.scopes", []string{"a", "b"}))

	assert.Equal(t, "alice", store.GetString("user.id"))
	assert.Equal(t, 250, store.GetInt("import.max_items"))
	assert.True(t, store.GetBool("scheduler.enabled"))
	assert.Equal(t, 90*time.Second, store.GetDuration("import.timeout"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("providers.google.scopes"))

	// Wrong types and missing keys yield zero values.
	assert.Empty(t, store.GetString("import.max_items"))
	assert.Zero(t, store.GetInt("user.id"))
	assert.False(t, store.GetBool("missing"))
	assert.Zero(t, store.GetDuration("user.id"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_GetDuration_IntegerSeconds(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	store.mu.Lock()
	store.data["tokens.refresh_margin"] = int64(45)
	store.mu.Unlock()

	assert.Equal(t, 45*time.Second, store.GetDuration("tokens.refresh_margin"))
}

func TestConfigStore_EnvOverride(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("import.max_items", int64(10)))

	t.Setenv("SERCHA_CONNECT_IMPORT_MAX_ITEMS", "500")
	t.Setenv("SERCHA_CONNECT_SCHEDULER_ENABLED", "true")
	t.Setenv("SERCHA_CONNECT_IMPORT_TIMEOUT", "2m")
	t.Setenv("SERCHA_CONNECT_PROVIDERS_GOOGLE_SCOPES", "x, y ,")

	assert.Equal(t, 500, store.GetInt("import.max_items"))
	assert.True(t, store.GetBool("scheduler.enabled"))
	assert.Equal(t, 2*time.Minute, store.GetDuration("import.timeout"))
	assert.Equal(t, []string{"x", "y"}, store.GetStringSlice("providers.google.scopes"))

	// Overrides are not persisted.
	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	reloaded.mu.RLock()
	assert.Equal(t, int64(10), reloaded.data["import.max_items"])
	reloaded.mu.RUnlock()
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "SERCHA_CONNECT_STORAGE_DSN", EnvName("storage.dsn"))
	assert.Equal(t, "SERCHA_CONNECT_PROVIDERS_GOOGLE_CLIENT_ID", EnvName("providers.google.client_id"))
}

func TestConfigStore_WritesNestedTables(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("storage.driver", "sqlite"))
	require.NoError(t, store.Set("providers.google.client_id", "cid"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[storage]")
	assert.Contains(t, string(raw), "[providers.google]")

	reloaded, err := NewConfigStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", reloaded.GetString("storage.driver"))
	assert.Equal(t, "cid", reloaded.GetString("providers.google.client_id"))
}

func TestNestMap_Collision(t *testing.T) {
	nested := nestMap(map[string]any{"a": "plain", "a.b": int64(1), "c.d": true})

	assert.Equal(t, "plain", nested["a"])
	assert.Equal(t, int64(1), nested["a.b"])
	assert.Equal(t, map[string]any{"d": true}, nested["c"])
	assert.Equal(t, map[string]any{"a": "plain", "a.b": int64(1), "c.d": true}, flattenMap(nested, ""))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("key", "value"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Load_EmptyTOMLData(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# Just a comment\n\n"), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("import.page_size", int64(50))
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("import.page_size")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.GetInt("import.page_size"))
}
