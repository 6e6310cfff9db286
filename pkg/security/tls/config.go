package tls

import (
	"crypto/tls"
	"fmt"

	"mercator-hq/ingress/pkg/config"
)

// ServerConfig builds the listener TLS configuration. Certificates are served
// through the reloader so that renewed files take effect without a restart.
func ServerConfig(cfg config.TLSConfig, reloader *CertificateReloader) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if reloader == nil {
		return nil, fmt.Errorf("tls: certificate reloader is required")
	}

	minVersion, err := ParseVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}
	suites, err := ParseCipherSuites(cfg.CipherSuites)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - MinVersion is validated, TLS 1.0 and 1.1 are rejected
	return &tls.Config{
		MinVersion:     minVersion,
		CipherSuites:   suites,
		GetCertificate: reloader.GetCertificateFunc(),
		NextProtos:     []string{"h2", "http/1.1"},
	}, nil
}

// ParseVersion converts "1.2" or "1.3" to a tls version constant. An empty
// string means TLS 1.2.
func ParseVersion(v string) (uint16, error) {
	switch v {
	case "1.2", "":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("tls: unsupported minimum version %q", v)
	}
}

// ParseCipherSuites resolves cipher suite names. Only suites Go considers
// secure are accepted. An empty list returns nil so Go's defaults apply.
func ParseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}

	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}

	suites := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("tls: unknown or insecure cipher suite %q", name)
		}
		suites = append(suites, id)
	}
	return suites, nil
}
