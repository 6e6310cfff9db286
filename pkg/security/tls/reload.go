package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/ingress/pkg/telemetry/logging"
)

// reloadDelay coalesces the burst of events produced when both files are
// replaced.
const reloadDelay = 250 * time.Millisecond

// CertificateReloader serves a certificate pair from disk and reloads it when
// either file changes. A failed reload keeps the previous certificate.
type CertificateReloader struct {
	certFile string
	keyFile  string
	logger   *logging.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	closing sync.Once
}

// NewCertificateReloader loads the pair once and returns a reloader. The
// files are not watched until Watch is called.
func NewCertificateReloader(certFile, keyFile string, logger *logging.Logger) (*CertificateReloader, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   logger.With("component", "tls.reloader"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads the pair from disk and swaps it in if it is valid.
func (r *CertificateReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("tls: failed to load certificate: %w", err)
	}
	if err := ValidateCertificate(&cert); err != nil {
		return fmt.Errorf("tls: certificate validation failed: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	r.logCertificateInfo(&cert)
	return nil
}

// Watch starts watching the directories holding the pair. Directories are
// watched rather than files so that atomic renames are seen. Watching stops
// when ctx is done or Close is called.
func (r *CertificateReloader) Watch(ctx context.Context) error {
	if r.watcher != nil {
		return errors.New("tls: reloader is already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tls: failed to create file watcher: %w", err)
	}
	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("tls: failed to watch %s: %w", dir, err)
		}
	}

	r.watcher = watcher
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.watchLoop(ctx)

	r.logger.Info("watching certificate files", "cert_file", r.certFile, "key_file", r.keyFile)
	return nil
}

// Close stops watching. It is safe to call when Watch was never called.
func (r *CertificateReloader) Close() error {
	if r.watcher == nil {
		return nil
	}
	var err error
	r.closing.Do(func() {
		close(r.done)
		err = r.watcher.Close()
		r.wg.Wait()
	})
	return err
}

func (r *CertificateReloader) watchLoop(ctx context.Context) {
	defer r.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.relevant(event) {
				continue
			}
			r.logger.Debug("certificate file change detected",
				"file", filepath.Base(event.Name),
				"op", event.Op.String(),
			)
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := r.Reload(); err != nil {
				r.logger.Error("failed to reload certificate", "error", err)
				continue
			}
			r.logger.Info("certificate reloaded", "cert_file", r.certFile)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)

		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

func (r *CertificateReloader) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if name == filepath.Clean(r.certFile) || name == filepath.Clean(r.keyFile) {
		return true
	}
	// Kubernetes secret volumes swap a ..data symlink.
	return filepath.Base(name) == "..data"
}

// Certificate returns the current certificate.
func (r *CertificateReloader) Certificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetCertificateFunc returns a function for tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificateFunc() func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return r.Certificate(), nil
	}
}

// Check fails when the served certificate has expired. It can be registered
// as a readiness check.
func (r *CertificateReloader) Check(context.Context) error {
	return ValidateCertificate(r.Certificate())
}

func (r *CertificateReloader) logCertificateInfo(cert *tls.Certificate) {
	leaf, err := Leaf(cert)
	if err != nil {
		return
	}

	days, warning := CheckCertificateExpiration(leaf, time.Now())
	if warning != "" {
		r.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}
	r.logger.Info("certificate loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	)
}
