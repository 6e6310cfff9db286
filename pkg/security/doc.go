/*
Package security groups the gateway's transport and secret handling.

# TLS Termination

Package tls builds the listener configuration and hot-reloads the
certificate pair when it changes on disk:

	reloader, err := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, logger)
	if err != nil {
		return err
	}
	tlsConfig, err := tls.ServerConfig(cfg, reloader)

# Secret References

Package secrets expands ${secret:name} references in the service
credentials from a mounted directory or the environment:

	resolver := secrets.NewResolver(
		files,
		secrets.NewEnvProvider("GATEWAY_SECRET_"),
	)
	apiKey, err := resolver.Resolve(ctx, cfg.Credentials.APIKey)
*/
package security
