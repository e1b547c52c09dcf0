// Package ssh holds the SSH plumbing used by the SFTP backup mirror.
package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yourusername/maintenance-gate/internal/logging"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

var knownHostsMu sync.Mutex

// NewHostKeyCallback verifies host keys against a known_hosts file. With
// trustOnFirstUse, keys for hosts missing from the file are appended;
// changed keys are always rejected.
func NewHostKeyCallback(knownHostsPath string, trustOnFirstUse bool) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(knownHostsPath) == "" {
		return nil, fmt.Errorf("known_hosts path is required")
	}

	if err := ensureKnownHostsFile(knownHostsPath); err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		knownHostsMu.Lock()
		defer knownHostsMu.Unlock()

		// Re-read on every dial so keys accepted earlier in the process count
		baseCallback, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return fmt.Errorf("failed to read known_hosts: %w", err)
		}

		err = baseCallback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}

		if len(keyErr.Want) > 0 {
			logging.Component("ssh").Warn("ssh_host_key_changed",
				"host", hostname,
				"fingerprint", ssh.FingerprintSHA256(key),
			)
			return fmt.Errorf("SSH host key changed for %s", hostname)
		}

		if !trustOnFirstUse {
			return fmt.Errorf("unknown SSH host key for %s", hostname)
		}

		if err := appendKnownHost(knownHostsPath, hostname, remote, key); err != nil {
			return err
		}

		logging.Component("ssh").Info("ssh_host_key_accepted",
			"host", hostname,
			"fingerprint", ssh.FingerprintSHA256(key),
		)
		return nil
	}, nil
}

func ensureKnownHostsFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create known_hosts directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create known_hosts file: %w", err)
	}
	return file.Close()
}

func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	line := knownhosts.Line(knownHostsEntries(hostname, remote), key) + "\n"

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write known_hosts entry: %w", err)
	}
	return nil
}

// knownHostsEntries lists the dialed name and, when different, the remote
// address, both normalized the way knownhosts expects.
func knownHostsEntries(hostname string, remote net.Addr) []string {
	var entries []string
	if hostname != "" {
		entries = append(entries, knownhosts.Normalize(hostname))
	}
	if remote != nil {
		addr := knownhosts.Normalize(remote.String())
		if len(entries) == 0 || entries[0] != addr {
			entries = append(entries, addr)
		}
	}
	return entries
}
