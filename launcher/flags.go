package launcher

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the daemon's CLI flags on fs and layers them over v,
// so a flag set on the command line always wins over the config file.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("mount-path", "", "path to mount the filesystem at")
	fs.String("storage-path", "", "path or connection string the backend opens")
	fs.String("backend", "bolt", "store backend: bolt, badger, or cql")
	fs.String("unique-user-id", "", "hex-encoded unique user id")
	fs.String("root-parent-id", "", "hex-encoded root parent directory id")
	fs.String("drive-name", "", "human-readable drive label")
	fs.Bool("create", false, "initialise a new root directory instead of mounting an existing one")
	fs.Bool("check-data", false, "accepted but not acted on; no integrity pass over the store is run")
	fs.String("handshake-socket", DefaultHandshakeSocket, "unix domain socket path for the mount-status handshake")
	fs.String("config", "", "path to a YAML config file")

	_ = v.BindPFlag("mount_path", fs.Lookup("mount-path"))
	_ = v.BindPFlag("storage_path", fs.Lookup("storage-path"))
	_ = v.BindPFlag("backend", fs.Lookup("backend"))
	_ = v.BindPFlag("unique_user_id", fs.Lookup("unique-user-id"))
	_ = v.BindPFlag("root_parent_id", fs.Lookup("root-parent-id"))
	_ = v.BindPFlag("drive_name", fs.Lookup("drive-name"))
	_ = v.BindPFlag("create", fs.Lookup("create"))
	_ = v.BindPFlag("check_data", fs.Lookup("check-data"))
	_ = v.BindPFlag("handshake_socket", fs.Lookup("handshake-socket"))
}
