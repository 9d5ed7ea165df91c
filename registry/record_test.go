package registry_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/p-hoffmann/trexsql-ext-sub003/registry"
)

func TestRecordKey(t *testing.T) {
	t.Parallel()

	rec := registry.Record{Category: "etl", Name: "orders-sync"}
	require.Equal(t, "service:etl:orders-sync", rec.Key())
}

func TestMarshalValueShape(t *testing.T) {
	t.Parallel()

	rec := registry.Record{
		Category: "query",
		Name:     "node-a",
		Host:     "10.0.0.1",
		Port:     8815,
		Status:   "running",
		Uptime:   3600,
		Config:   map[string]any{"mode": "distributed"},
	}
	value, err := rec.MarshalValue()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(value), &raw))
	require.Equal(t, "10.0.0.1", raw["host"])
	require.Equal(t, float64(8815), raw["port"])
	require.Equal(t, "running", raw["status"])
	require.Equal(t, float64(3600), raw["uptime"])
	require.Equal(t, map[string]any{"mode": "distributed"}, raw["config"])
}

func TestMarshalValueNilConfig(t *testing.T) {
	t.Parallel()

	value, err := registry.Record{Category: "query", Name: "n"}.MarshalValue()
	require.NoError(t, err)
	require.Contains(t, value, `"config":{}`)
	require.NotContains(t, value, "null")
}

func TestParseRecordRoundTrip(t *testing.T) {
	t.Parallel()

	value := `{"host":"0.0.0.0","port":50051,"status":"running","uptime":3600,"config":{"mode":"cdc"}}`
	rec, err := registry.ParseRecord("etl", "orders-sync", value)
	require.NoError(t, err)
	require.Equal(t, "etl", rec.Category)
	require.Equal(t, "orders-sync", rec.Name)
	require.Equal(t, "0.0.0.0", rec.Host)
	require.Equal(t, 50051, rec.Port)
	require.Equal(t, "running", rec.Status)
	require.Equal(t, int64(3600), rec.Uptime)
	require.Equal(t, map[string]any{"mode": "cdc"}, rec.Config)
}

func TestParseRecordStringNumbers(t *testing.T) {
	t.Parallel()

	// Other writers advertise port and uptime as strings.
	rec, err := registry.ParseRecord("query", "node-a", `{"host":"h","port":"8815","uptime":"120"}`)
	require.NoError(t, err)
	require.Equal(t, 8815, rec.Port)
	require.Equal(t, int64(120), rec.Uptime)
}

func TestParseRecordDefaults(t *testing.T) {
	t.Parallel()

	rec, err := registry.ParseRecord("query", "node-a", `{}`)
	require.NoError(t, err)
	require.Equal(t, "", rec.Host)
	require.Equal(t, 0, rec.Port)
	require.Equal(t, "unknown", rec.Status)
	require.Equal(t, int64(0), rec.Uptime)
	require.NotNil(t, rec.Config)
	require.Empty(t, rec.Config)
}

func TestParseRecordGarbageNumbers(t *testing.T) {
	t.Parallel()

	rec, err := registry.ParseRecord("query", "node-a", `{"port":"not-a-port","uptime":{}}`)
	require.NoError(t, err)
	require.Equal(t, 0, rec.Port)
	require.Equal(t, int64(0), rec.Uptime)
}

func TestParseRecordNotAnObject(t *testing.T) {
	t.Parallel()

	_, err := registry.ParseRecord("query", "node-a", `"running"`)
	require.Error(t, err)

	_, err = registry.ParseRecord("query", "node-a", `not json`)
	require.Error(t, err)
}
