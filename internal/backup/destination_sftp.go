package backup

import (
	"fmt"
	"io"
	"log"
	"path"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/yourusername/maintenance-gate/internal/config"
	sshclient "github.com/yourusername/maintenance-gate/internal/ssh"
	xssh "golang.org/x/crypto/ssh"
)

// SFTPDestination stores backups on a remote SFTP server. The connection is
// opened on first use and re-established after a failure.
type SFTPDestination struct {
	config     config.MirrorConfig
	mu         sync.Mutex
	dial       func() (*sftp.Client, io.Closer, error)
	conn       io.Closer
	sftpClient *sftp.Client
}

// NewSFTPDestination validates config; it does not dial.
func NewSFTPDestination(cfg config.MirrorConfig) (*SFTPDestination, error) {
	if cfg.SFTPHost == "" || cfg.SFTPUsername == "" {
		return nil, fmt.Errorf("sftp mirror requires host and username")
	}
	if cfg.SFTPKeyPath == "" && cfg.SFTPPassword == "" {
		return nil, fmt.Errorf("no authentication method provided for SFTP")
	}
	if cfg.SFTPPort == 0 {
		cfg.SFTPPort = 22
	}
	sd := &SFTPDestination{config: cfg}
	sd.dial = sd.dialSSH
	return sd, nil
}

func (sd *SFTPDestination) clientConfig() (*xssh.ClientConfig, error) {
	hostKeyCallback, err := sshclient.NewHostKeyCallback(sd.config.KnownHostsPath, sd.config.TrustOnFirstUse)
	if err != nil {
		return nil, fmt.Errorf("failed to configure host key verification: %w", err)
	}

	clientConfig := &xssh.ClientConfig{
		User:            sd.config.SFTPUsername,
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	}

	if sd.config.SFTPKeyPath != "" {
		signer, err := sshclient.LoadSigner(sd.config.SFTPKeyPath, sd.config.SFTPPassphrase)
		if err != nil {
			return nil, err
		}
		clientConfig.Auth = []xssh.AuthMethod{xssh.PublicKeys(signer)}
	} else {
		clientConfig.Auth = []xssh.AuthMethod{xssh.Password(sd.config.SFTPPassword)}
	}

	return clientConfig, nil
}

// client returns a live SFTP client, connecting if needed. Caller holds mu.
func (sd *SFTPDestination) client() (*sftp.Client, error) {
	if sd.sftpClient != nil {
		if _, err := sd.sftpClient.Getwd(); err == nil {
			return sd.sftpClient, nil
		}
		log.Printf("[SFTPDest] Connection lost, reconnecting")
		sd.closeLocked()
	}

	sftpClient, conn, err := sd.dial()
	if err != nil {
		return nil, err
	}

	if err := sftpClient.MkdirAll(sd.config.Path); err != nil {
		sftpClient.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	sd.conn = conn
	sd.sftpClient = sftpClient
	return sftpClient, nil
}

func (sd *SFTPDestination) dialSSH() (*sftp.Client, io.Closer, error) {
	clientConfig, err := sd.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	addr := fmt.Sprintf("%s:%d", sd.config.SFTPHost, sd.config.SFTPPort)
	log.Printf("[SFTPDest] Connecting to %s...", addr)

	sshClient, err := xssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to SSH server: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient, sftp.UseConcurrentWrites(true))
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return sftpClient, sshClient, nil
}

// Close closes the SFTP and SSH connections
func (sd *SFTPDestination) Close() error {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.closeLocked()
	return nil
}

func (sd *SFTPDestination) closeLocked() {
	if sd.sftpClient != nil {
		sd.sftpClient.Close()
		sd.sftpClient = nil
	}
	if sd.conn != nil {
		sd.conn.Close()
		sd.conn = nil
	}
}

// Upload writes to a temporary remote name and renames it into place
func (sd *SFTPDestination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	client, err := sd.client()
	if err != nil {
		return err
	}

	destPath := path.Join(sd.config.Path, filename)
	tmpPath := path.Join(sd.config.Path, "."+filename+".part")

	file, err := client.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}

	written, err := io.Copy(file, reader)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil && sizeBytes >= 0 && written != sizeBytes {
		err = fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", sizeBytes, written)
	}
	if err == nil {
		err = client.PosixRename(tmpPath, destPath)
	}
	if err != nil {
		client.Remove(tmpPath)
		return fmt.Errorf("failed to write remote file: %w", err)
	}

	log.Printf("[SFTPDest] Upload complete: %s", filename)
	return nil
}

// Delete removes a backup file from the SFTP destination
func (sd *SFTPDestination) Delete(filename string) error {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	client, err := sd.client()
	if err != nil {
		return err
	}

	if err := client.Remove(path.Join(sd.config.Path, filename)); err != nil {
		return fmt.Errorf("failed to delete remote file: %w", err)
	}
	return nil
}

// List returns all backup files in the SFTP destination
func (sd *SFTPDestination) List() ([]BackupFile, error) {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	client, err := sd.client()
	if err != nil {
		return nil, err
	}

	entries, err := client.ReadDir(sd.config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote directory: %w", err)
	}

	var files []BackupFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		files = append(files, BackupFile{
			Filename:  entry.Name(),
			SizeBytes: entry.Size(),
			CreatedAt: entry.ModTime().Unix(),
		})
	}

	return files, nil
}

// GetType returns the destination type
func (sd *SFTPDestination) GetType() string {
	return "sftp"
}
