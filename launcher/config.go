// Package launcher wires together flags, config, logging and the
// mount-status handshake into the daemon's startup sequence.
package launcher

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one daemon run: CLI flags
// layered over an optional YAML file, validated before anything is opened.
type Config struct {
	// MountPath is where the filesystem is mounted.
	MountPath string `mapstructure:"mount_path" validate:"required"`

	// StoragePath is the directory or connection string the selected
	// backend opens; its meaning depends on Backend.
	StoragePath string `mapstructure:"storage_path" validate:"required"`

	// Backend selects which drive.Store implementation to construct.
	Backend string `mapstructure:"backend" validate:"required,oneof=bolt badger cql"`

	// UniqueUserID and RootParentID are hex-encoded identities.
	// RootParentID is the DirectoryId of the root directory this daemon
	// mounts, and drived gives that root its own id as ParentID;
	// UniqueUserID is validated but not otherwise used.
	UniqueUserID  string `mapstructure:"unique_user_id" validate:"required,hexadecimal"`
	RootParentID  string `mapstructure:"root_parent_id" validate:"required,hexadecimal"`

	// DriveName is a human-readable label passed to the FUSE mount as its
	// name.
	DriveName string `mapstructure:"drive_name" validate:"required"`

	// Create initialises a brand new root directory instead of mounting
	// an existing one.
	Create bool `mapstructure:"create"`

	// CheckData is parsed but not acted on: drived runs no integrity pass
	// over the store.
	CheckData bool `mapstructure:"check_data"`

	// HandshakeSocket is the Unix domain socket path used for the
	// mount-status handshake described in Handshake.
	HandshakeSocket string `mapstructure:"handshake_socket"`

	CQL CQLConfig `mapstructure:"cql"`
}

// CQLConfig carries the connection details needed only when Backend is
// "cql"; left zero-valued for the local disk backends.
type CQLConfig struct {
	Hosts    []string `mapstructure:"hosts"`
	Keyspace string   `mapstructure:"keyspace"`
}

var validate = validator.New()

// Load resolves a Config from v, which the caller has already had pflag
// bind its flags into and, optionally, pointed at a config file via
// SetConfigFile before calling v.ReadInConfig.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal launcher config: %w", err)
	}
	if cfg.HandshakeSocket == "" {
		cfg.HandshakeSocket = DefaultHandshakeSocket
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

func formatValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on %q (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
