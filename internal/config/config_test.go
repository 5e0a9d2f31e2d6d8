package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/models"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "SESSION_DURATION", "SESSION_TICK_MS", "TABLE_COUNT", "KAFKA_BROKERS", "CORS_ORIGINS", "EVENTS_DRIVER"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.SessionDuration)
	assert.Equal(t, time.Second, cfg.SessionTick)
	assert.Equal(t, 12, cfg.TableCount)
	assert.Equal(t, EventsNone, cfg.EventsDriver)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("SESSION_DURATION", "15")
	t.Setenv("SESSION_GRACE", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("TABLE_COUNT", "0")

	cfg := FromEnv()
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.SessionDuration)
	assert.Equal(t, 5*time.Second, cfg.SessionGrace)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0, cfg.TableCount)
}

func TestValidate(t *testing.T) {
	cfg := Config{StoreDriver: DriverMemory, JWTSecret: "s", EventsDriver: EventsNone}
	assert.NoError(t, cfg.Validate())

	cfg.StoreDriver = DriverMongo
	assert.Error(t, cfg.Validate())

	cfg = Config{StoreDriver: DriverMemory, JWTSecret: "s", EventsDriver: EventsKafka}
	assert.Error(t, cfg.Validate())

	cfg = Config{StoreDriver: "sqlite", EventsDriver: "carrier-pigeon"}
	assert.Error(t, cfg.Validate())
}

func TestParseFloorPlan(t *testing.T) {
	plan, err := ParseFloorPlan([]byte("tables: [\"1\", \"2\", patio]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{models.TakeawayTable, "1", "2", "patio"}, []string(plan))

	plan, err = ParseFloorPlan([]byte("takeaway: false\ntables: [bar]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, []string(plan))

	_, err = ParseFloorPlan([]byte("tables: [\"1\", \"1\"]\n"))
	assert.Error(t, err)

	_, err = ParseFloorPlan([]byte("takeaway: false\n"))
	assert.Error(t, err)
}

func TestParseFloorPlanTakeawayPosition(t *testing.T) {
	plan, err := ParseFloorPlan([]byte("takeaway: false\ntables: [\"1\", Takeaway, \"2\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "Takeaway", "2"}, []string(plan))

	_, err = ParseFloorPlan([]byte("tables: [takeaway]\n"))
	assert.Error(t, err)
}

func TestLoadFloorPlan(t *testing.T) {
	plan, err := LoadFloorPlan("", 3)
	require.NoError(t, err)
	assert.Len(t, plan, 4)

	path := filepath.Join(t.TempDir(), "floor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - \"10\"\n  - \"11\"\n"), 0o600))
	plan, err = LoadFloorPlan(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{models.TakeawayTable, "10", "11"}, []string(plan))

	_, err = LoadFloorPlan(filepath.Join(t.TempDir(), "missing.yaml"), 3)
	assert.Error(t, err)
}
