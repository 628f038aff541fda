// drived is the delivered daemon: it parses flags/config, opens a backing
// store, constructs a DirectoryHandler, and hands it to a FUSE mount.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	drive "github.com/vtnerd/MaidSafe-Drive"
	"github.com/vtnerd/MaidSafe-Drive/content"
	"github.com/vtnerd/MaidSafe-Drive/directory"
	"github.com/vtnerd/MaidSafe-Drive/fuseadapter"
	"github.com/vtnerd/MaidSafe-Drive/launcher"
	"github.com/vtnerd/MaidSafe-Drive/metrics"
	"github.com/vtnerd/MaidSafe-Drive/store/badgerstore"
	"github.com/vtnerd/MaidSafe-Drive/store/boltstore"
	"github.com/vtnerd/MaidSafe-Drive/store/cqlstore"
)

const (
	exitFlags     = 1
	exitConfig    = 2
	exitStore     = 3
	exitDirectory = 4
	exitMount     = 5
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "status" {
		runStatus(os.Args[2:])
		return
	}

	flagSet := pflag.NewFlagSet("drived", pflag.ExitOnError)
	v := viper.New()
	launcher.BindFlags(flagSet, v)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		os.Exit(exitFlags)
	}

	if cfgFile, _ := flagSet.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "drived: read config: %v\n", err)
			os.Exit(exitConfig)
		}
	}

	cfg, err := launcher.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drived: %v\n", err)
		os.Exit(exitConfig)
	}

	log := launcher.NewLogger()
	defer log.Sync()

	registry := metrics.NewRegistry()
	backing, closeStore, err := openBackend(cfg)
	if err != nil {
		log.Error("open backend failed", zap.Error(err))
		os.Exit(exitStore)
	}
	defer closeStore()
	store := metrics.Wrap(backing, registry)

	handler := directory.NewHandler(store, drive.MaxVersions)

	c := drive.NewCtx(context.Background(), log)

	rootParentID, err := drive.ParseIdentity(cfg.RootParentID)
	if err != nil {
		log.Error("invalid root-parent-id", zap.Error(err))
		os.Exit(exitConfig)
	}
	rootID := drive.DirectoryId(rootParentID)

	var root *directory.Directory
	if cfg.Create {
		root, err = handler.CreateRoot(c, rootID)
	} else {
		root, err = handler.Get(c, drive.ParentId(rootID), rootID, "/")
	}
	if err != nil {
		log.Error("prepare root directory failed", zap.Error(err))
		os.Exit(exitDirectory)
	}

	contentStore := content.New(backing)
	rootNode := fuseadapter.NewRoot(handler, contentStore, log, root)

	handshake, err := launcher.NewHandshake(cfg.HandshakeSocket, log, registry)
	if err != nil {
		log.Error("open handshake socket failed", zap.Error(err))
		os.Exit(exitMount)
	}
	defer handshake.Close()

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther: true,
			FsName:     "maidsafe-drive",
			Name:       cfg.DriveName,
		},
	}

	server, err := fs.Mount(cfg.MountPath, rootNode, opts)
	if err != nil {
		log.Error("mount failed", zap.Error(err))
		os.Exit(exitMount)
	}
	log.Info("filesystem mounted", zap.String("path", cfg.MountPath))
	if err := launcher.SignalMounted(cfg.HandshakeSocket); err != nil {
		log.Warn("signal mounted failed", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, unmounting", zap.String("signal", sig.String()))
		case <-handshake.Unmount():
			log.Info("unmount requested over handshake socket")
		}
		if err := handler.FlushAll(c); err != nil {
			log.Error("flush on unmount failed", zap.Error(err))
		}
		if err := server.Unmount(); err != nil {
			log.Error("unmount failed", zap.Error(err))
		}
	}()

	server.Wait()
	log.Info("filesystem unmounted")
}

// runStatus implements the "drived status" subcommand: it queries a running
// daemon's handshake socket for its metrics.Registry snapshots and prints
// them, one line per Store operation.
func runStatus(args []string) {
	flagSet := pflag.NewFlagSet("drived status", pflag.ExitOnError)
	socketPath := flagSet.String("handshake-socket", launcher.DefaultHandshakeSocket,
		"unix domain socket path for the mount-status handshake")
	if err := flagSet.Parse(args); err != nil {
		os.Exit(exitFlags)
	}

	snapshots, err := launcher.QueryStatus(*socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drived status: %v\n", err)
		os.Exit(exitStore)
	}

	if len(snapshots) == 0 {
		fmt.Println("no operations recorded yet")
		return
	}
	for _, s := range snapshots {
		fmt.Printf("%-16s ops=%-8d p50=%-10s p99=%-10s p999=%-10s rate=%.1f/s\n",
			s.Name, s.TotalOps, s.P50, s.P99, s.P999, s.OpsPerSec)
	}
}

// openBackend constructs the drive.Store the selected backend names, along
// with a closer the caller must run on shutdown.
func openBackend(cfg *launcher.Config) (drive.Store, func(), error) {
	switch cfg.Backend {
	case "bolt":
		s, err := boltstore.Open(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "badger":
		s, err := badgerstore.Open(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "cql":
		s, err := cqlstore.Open(cqlstore.Config{
			Hosts:    cfg.CQL.Hosts,
			Keyspace: cfg.CQL.Keyspace,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
