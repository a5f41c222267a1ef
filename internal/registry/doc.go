// Package registry is the Service Registry: it turns the YAML files of the
// services directory into validated service definitions.
//
// Each file holds one definition; the file base name is the default
// service name:
//
//	# /etc/warden/services/db.yaml
//	type: notify
//	exec: /usr/bin/postgres -D /var/lib/postgres
//	user: postgres
//	requires: [network.target]
//	after: [network.target]
//	restart:
//	  policy: on-failure
//	  delay: 1s
//	  maxAttempts: 5
//	  backoff: exponential
//	  maxDelay: 30s
//
// Malformed files are reported as *api.ConfigError and excluded; they
// never prevent the other definitions from loading. Diff compares two
// definition sets for reload and Watcher requests a reload whenever the
// directory changes.
package registry
