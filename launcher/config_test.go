package launcher

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func validViper() *viper.Viper {
	v := viper.New()
	v.Set("mount_path", "/mnt/drive")
	v.Set("storage_path", "/var/lib/drive")
	v.Set("backend", "bolt")
	v.Set("unique_user_id", "deadbeef")
	v.Set("root_parent_id", "cafebabe")
	v.Set("drive_name", "mydrive")
	return v
}

func TestLoadAcceptsValidConfig(t *testing.T) {
	cfg, err := Load(validViper())
	require.NoError(t, err)
	require.Equal(t, "bolt", cfg.Backend)
	require.Equal(t, DefaultHandshakeSocket, cfg.HandshakeSocket)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	v := validViper()
	v.Set("backend", "sqlite")
	_, err := Load(v)
	require.Error(t, err)
}

func TestLoadRejectsNonHexID(t *testing.T) {
	v := validViper()
	v.Set("unique_user_id", "not-hex!")
	_, err := Load(v)
	require.Error(t, err)
}

func TestLoadRejectsMissingMountPath(t *testing.T) {
	v := validViper()
	v.Set("mount_path", "")
	_, err := Load(v)
	require.Error(t, err)
}
