// Command naming runs the naming server: the metadata authority that
// maps paths to storage servers and arbitrates path-chain locks.
package main

import (
	"flag"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/google/gops/agent"
	log "github.com/sirupsen/logrus"

	"github.com/lfcarvalho/distfs/internal/api"
	"github.com/lfcarvalho/distfs/internal/config"
	"github.com/lfcarvalho/distfs/internal/naming"
	"github.com/lfcarvalho/distfs/internal/rpc"
)

func main() {
	configPath := flag.String("config", "", "Path to the naming server configuration file")
	flag.Parse()
	if *configPath == "" {
		log.Fatal("-config is required")
	}

	cfg, err := config.LoadNaming(*configPath)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}
	if ll, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(ll)
	}

	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Warningf("could not start gops agent: %v", err)
	}

	server := naming.NewServer(log.WithField("component", "naming"))

	serviceType := reflect.TypeOf((*api.Service)(nil)).Elem()
	serviceSkeleton, err := rpc.NewSkeleton(serviceType, server, cfg.ServiceNet, cfg.ServiceAddr)
	if err != nil {
		log.Fatalf("could not prepare Service endpoint: %v", err)
	}
	if err := serviceSkeleton.Start(); err != nil {
		log.Fatalf("could not start Service endpoint: %v", err)
	}
	log.Infof("Service listening on %s %s", cfg.ServiceNet, serviceSkeleton.Addr())

	registrationType := reflect.TypeOf((*api.Registration)(nil)).Elem()
	registrationSkeleton, err := rpc.NewSkeleton(registrationType, server, cfg.RegistrationNet, cfg.RegistrationAddr)
	if err != nil {
		log.Fatalf("could not prepare Registration endpoint: %v", err)
	}
	if err := registrationSkeleton.Start(); err != nil {
		log.Fatalf("could not start Registration endpoint: %v", err)
	}
	log.Infof("Registration listening on %s %s", cfg.RegistrationNet, registrationSkeleton.Addr())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.Infof("got signal %q, shutting down", sig)

	_ = serviceSkeleton.Stop()
	_ = registrationSkeleton.Stop()
	serviceSkeleton.Wait()
	registrationSkeleton.Wait()
	server.Wait()
}
