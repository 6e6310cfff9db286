// Package secrets resolves ${secret:name} references in credential settings.
//
// A credential can be written inline or as a reference:
//
//	credentials:
//	  api_key: "${secret:anon-key}"
//
// References are looked up in a mounted secrets directory first
// ([FileProvider]) and then in the environment ([EnvProvider]). Resolution
// happens once at startup; a missing secret is a configuration error.
package secrets
