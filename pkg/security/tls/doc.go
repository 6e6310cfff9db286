// Package tls serves the gateway listener over HTTPS.
//
// A [CertificateReloader] holds the certificate pair and, when watching is
// enabled, reloads it through fsnotify whenever the files are rewritten or
// swapped. [ServerConfig] wires the reloader into a crypto/tls configuration
// with the configured minimum version and cipher suites:
//
//	reloader, err := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, logger)
//	if err != nil {
//		return err
//	}
//	defer reloader.Close()
//	_ = reloader.Watch(ctx)
//	tlsConfig, err := tls.ServerConfig(cfg, reloader)
package tls
