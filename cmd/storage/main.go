// Command storage runs a storage server: a byte custodian that serves
// file contents directly to clients and takes lifecycle commands
// (create, delete, copy) from the naming server.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	log "github.com/sirupsen/logrus"

	"github.com/lfcarvalho/distfs/internal/api"
	"github.com/lfcarvalho/distfs/internal/config"
	"github.com/lfcarvalho/distfs/internal/netutil"
	"github.com/lfcarvalho/distfs/internal/rpc"
	"github.com/lfcarvalho/distfs/internal/storageserver"
)

func newBackend(cfg *config.Storage) (storageserver.Backend, error) {
	switch cfg.Backend {
	case "s3":
		return storageserver.NewS3Backend(cfg.S3Profile, cfg.S3Region, cfg.S3Bucket), nil
	default:
		return storageserver.NewDiskBackend(cfg.LocalRoot)
	}
}

func main() {
	configPath := flag.String("config", "", "Path to the storage server configuration file")
	flag.Parse()
	if *configPath == "" {
		log.Fatal("-config is required")
	}

	cfg, err := config.LoadStorage(*configPath)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}
	if ll, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(ll)
	}

	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Warningf("could not start gops agent: %v", err)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		log.Fatalf("could not initialize backend: %v", err)
	}
	server := storageserver.NewServer(backend, log.WithField("component", "storage"))

	storageType := reflect.TypeOf((*api.Storage)(nil)).Elem()
	storageSkeleton, err := rpc.NewSkeleton(storageType, server, cfg.StorageNet, cfg.StorageAddr)
	if err != nil {
		log.Fatalf("could not prepare Storage endpoint: %v", err)
	}
	if err := storageSkeleton.Start(); err != nil {
		log.Fatalf("could not start Storage endpoint: %v", err)
	}
	log.Infof("Storage listening on %s %s", cfg.StorageNet, storageSkeleton.Addr())

	commandType := reflect.TypeOf((*api.Command)(nil)).Elem()
	commandSkeleton, err := rpc.NewSkeleton(commandType, server, cfg.CommandNet, cfg.CommandAddr)
	if err != nil {
		log.Fatalf("could not prepare Command endpoint: %v", err)
	}
	if err := commandSkeleton.Start(); err != nil {
		log.Fatalf("could not start Command endpoint: %v", err)
	}
	log.Infof("Command listening on %s %s", cfg.CommandNet, commandSkeleton.Addr())

	if err := register(cfg, server, storageSkeleton, commandSkeleton); err != nil {
		log.Fatalf("could not register with naming server: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.Infof("got signal %q, shutting down", sig)

	_ = storageSkeleton.Stop()
	_ = commandSkeleton.Stop()
	storageSkeleton.Wait()
	commandSkeleton.Wait()
}

func register(cfg *config.Storage, server *storageserver.Server, storageSkeleton, commandSkeleton *rpc.Skeleton) error {
	if err := netutil.WaitForListener(cfg.NamingRegNet, cfg.NamingRegAddr, 30*time.Second); err != nil {
		return fmt.Errorf("naming server Registration endpoint never came up: %w", err)
	}

	files, err := server.LocalFiles()
	if err != nil {
		return err
	}
	registration, err := api.NewRegistrationStub(cfg.NamingRegNet, cfg.NamingRegAddr)
	if err != nil {
		return err
	}
	self := api.StorageHandle{Network: cfg.StorageNet, Address: storageSkeleton.Addr().String()}
	command := api.CommandHandle{Network: cfg.CommandNet, Address: commandSkeleton.Addr().String()}
	duplicates, err := registration.Register(self, command, files)
	if err != nil {
		return err
	}
	for _, p := range duplicates {
		log.Warnf("deleting local duplicate %s (another server already owns it)", p)
		if _, err := server.Delete(p); err != nil {
			log.Warnf("could not delete duplicate %s: %v", p, err)
		}
	}
	return nil
}
