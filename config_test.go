package luzidos

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
bucket: luzidos-documents
region: us-east-1
timebomb_target_arn: arn:aws:lambda:us-east-1:000000000000:function:resume-agent
identity_table: emailToUserId
lock_ttl: 15m
audit_max_entries_per_segment: 250
follow_up:
  hour: 9
  minute: 30
  timezone: America/Bogota
`), 0644))

		config, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, "luzidos-documents", config.Bucket)
		assert.Equal(t, "us-east-1", config.Region)
		assert.Equal(t, "emailToUserId", config.IdentityTable)
		assert.Equal(t, 15*time.Minute, config.LockTTL.Std())
		assert.Equal(t, 250, config.AuditMaxEntriesPerSegment)
		assert.Equal(t, LocalTimeAlignment{Hour: 9, Minute: 30, Timezone: "America/Bogota"}, config.Alignment())
	})

	t.Run("alignment defaults to 8:00 Bogota", func(t *testing.T) {
		config := &Config{}
		assert.Equal(t, LocalTimeAlignment{Hour: 8, Timezone: "America/Bogota"}, config.Alignment())
	})

	t.Run("partial alignment gets default timezone", func(t *testing.T) {
		config := &Config{FollowUp: FollowUpConfig{Hour: 7}}
		assert.Equal(t, LocalTimeAlignment{Hour: 7, Timezone: "America/Bogota"}, config.Alignment())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bucket: [unclosed"), 0644))
		_, err := LoadConfigFile(path)
		require.Error(t, err)
	})
}
