// Gateway is a single-ingress HTTP(S) gateway for a backend-as-a-service
// platform.
//
// It multiplexes the platform's sub-APIs behind one origin:
//   - /rest/v1, /auth/v1, /functions/v1 and /storage/v1 are forwarded
//   - /realtime/v1 is tunneled as a WebSocket
//
// Every forwarded request carries the service credentials, which never
// leave the gateway, and every response carries the configured CORS policy.
//
// Usage:
//
//	# Start with environment configuration only
//	SUPABASE_URL=https://project.example SUPABASE_ANON_KEY=... gateway run
//
//	# Start with a configuration file
//	gateway run --config /etc/gateway/config.yaml
//
//	# Print the route table
//	gateway routes
//
//	# Show version information
//	gateway version
package main

import "os"

func main() {
	os.Exit(Execute())
}
