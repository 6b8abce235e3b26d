package migrate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KunlingLio/project-timer/internal/device"
	"github.com/KunlingLio/project-timer/internal/kvstore"
	"github.com/KunlingLio/project-timer/internal/logging"
	"github.com/KunlingLio/project-timer/internal/migrate"
	"github.com/KunlingLio/project-timer/internal/model"
)

var dev = device.Static{ID: "dev1", Host: "laptop"}

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("uuid-%d", n)
	}
}

func TestFromLegacy(t *testing.T) {
	rec := migrate.FromLegacy(model.LegacyRecord{ProjectName: "alpha", TotalSeconds: 120}, dev, sequence())

	assert.Equal(t, "dev1", rec.DeviceID)
	assert.Equal(t, "uuid-1", rec.ProjectUUID)
	require.NotNil(t, rec.DeviceName)
	assert.Equal(t, "laptop", *rec.DeviceName)
	assert.Nil(t, rec.DisplayName)
	assert.Equal(t, "alpha", rec.MatchInfo.FolderName)
	assert.True(t, rec.MatchInfo.IsLegacy())
	assert.NotNil(t, rec.History)
	assert.Empty(t, rec.History)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Update(ctx, "timerStorage-alpha", []byte(`{"project_name":"alpha","total_seconds":60}`)))
	require.NoError(t, kv.Update(ctx, "timerStorage-beta", []byte(`{"total_seconds":5}`)))
	require.NoError(t, kv.Update(ctx, "timerStorageV2-dev1-existing", []byte(`{"deviceId":"dev1"}`)))

	n, err := migrate.Run(ctx, kv, dev, sequence(), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := kv.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"timerStorageV2-dev1-existing",
		"timerStorageV2-dev1-uuid-1",
		"timerStorageV2-dev1-uuid-2",
	}, keys)

	data, ok, err := kv.Get(ctx, "timerStorageV2-dev1-uuid-2")
	require.NoError(t, err)
	require.True(t, ok)
	var rec model.ProjectRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "beta", rec.MatchInfo.FolderName, "name falls back to the key")
}

func TestRunNoLegacy(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Update(ctx, "timerStorageV2-dev1-p", []byte(`{}`)))

	n, err := migrate.Run(ctx, kv, dev, sequence(), logging.Discard())
	require.NoError(t, err)
	assert.Zero(t, n)

	keys, _ := kv.Keys(ctx)
	assert.Equal(t, []string{"timerStorageV2-dev1-p"}, keys)
}

func TestRunCorruptLegacyKeepsKeys(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Update(ctx, "timerStorage-alpha", []byte(`not json`)))

	_, err := migrate.Run(ctx, kv, dev, sequence(), logging.Discard())
	require.Error(t, err)

	_, ok, _ := kv.Get(ctx, "timerStorage-alpha")
	assert.True(t, ok, "legacy key must survive a failed migration")
}
