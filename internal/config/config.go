package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Naming holds a naming server's configuration: where its Service and
// Registration RPC endpoints listen.
type Naming struct {
	ServiceNet       string
	ServiceAddr      string
	RegistrationNet  string
	RegistrationAddr string
	LogLevel         string
}

// Storage holds a storage server's configuration: where its own Storage
// and Command endpoints listen, where the naming server's Registration
// endpoint can be reached, and where (or how) it keeps bytes.
type Storage struct {
	StorageNet    string
	StorageAddr   string
	CommandNet    string
	CommandAddr   string
	NamingRegNet  string
	NamingRegAddr string

	// Backend selects the byte store: "disk" (default) or "s3".
	Backend   string
	LocalRoot string
	S3Bucket  string
	S3Profile string
	S3Region  string

	LogLevel string
}

// LoadNaming reads a naming server configuration file.
func LoadNaming(path string) (*Naming, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config.LoadNaming")
	}
	defer func() { _ = f.Close() }()

	c := &Naming{LogLevel: "info"}
	err = scan(f, func(key, val string) error {
		switch key {
		case "service-net":
			c.ServiceNet = val
		case "service-addr":
			c.ServiceAddr = val
		case "registration-net":
			c.RegistrationNet = val
		case "registration-addr":
			c.RegistrationAddr = val
		case "log-level":
			c.LogLevel = val
		default:
			return errorf("LoadNaming", "unknown key %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "config.LoadNaming %q", path)
	}
	if c.ServiceNet == "" {
		c.ServiceNet = "tcp"
	}
	if c.RegistrationNet == "" {
		c.RegistrationNet = "tcp"
	}
	return c, nil
}

// LoadStorage reads a storage server configuration file.
func LoadStorage(path string) (*Storage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config.LoadStorage")
	}
	defer func() { _ = f.Close() }()

	c := &Storage{LogLevel: "info", Backend: "disk"}
	err = scan(f, func(key, val string) error {
		switch key {
		case "storage-net":
			c.StorageNet = val
		case "storage-addr":
			c.StorageAddr = val
		case "command-net":
			c.CommandNet = val
		case "command-addr":
			c.CommandAddr = val
		case "naming-registration-net":
			c.NamingRegNet = val
		case "naming-registration-addr":
			c.NamingRegAddr = val
		case "local-root":
			c.LocalRoot = val
		case "backend":
			c.Backend = val
		case "s3-bucket":
			c.S3Bucket = val
		case "s3-profile":
			c.S3Profile = val
		case "s3-region":
			c.S3Region = val
		case "log-level":
			c.LogLevel = val
		default:
			return errorf("LoadStorage", "unknown key %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "config.LoadStorage %q", path)
	}
	if c.StorageNet == "" {
		c.StorageNet = "tcp"
	}
	if c.CommandNet == "" {
		c.CommandNet = "tcp"
	}
	if c.NamingRegNet == "" {
		c.NamingRegNet = "tcp"
	}
	if c.Backend == "disk" && c.LocalRoot == "" {
		return nil, errorf("LoadStorage", "disk backend requires local-root")
	}
	if c.LocalRoot != "" && !filepath.IsAbs(c.LocalRoot) {
		abs, err := filepath.Abs(c.LocalRoot)
		if err != nil {
			return nil, errors.Wrap(err, "config.LoadStorage")
		}
		c.LocalRoot = abs
	}
	return c, nil
}

func scan(f io.Reader, set func(key, val string) error) error {
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		i := strings.IndexAny(line, " 	")
		if i == -1 {
			return fmt.Errorf("no separator in %q", line)
		}
		key, val := line[:i], strings.TrimSpace(line[i:])
		if err := set(key, val); err != nil {
			return err
		}
	}
	return s.Err()
}
