// Package config provides configuration loading for Till Bridge.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then TILLBRIDGE_* environment variables. The gateway runs on the till
// machine itself, so pure-env deployments (no config file) are supported.
//
// # Capability flags
//
// Each device section carries an Enabled flag. A disabled capability is not
// constructed at all: it does not appear in the device registry and /status
// reports it as "disabled". There is no partially-configured failed state
// for a disabled device.
//
// # Example
//
//	gateway:
//	  port: 8420
//	security:
//	  shared_key: "s3cret"
//	  allowed_origins: ["http://localhost", "https://pos.example.com"]
//	devices:
//	  drawer:
//	    enabled: true
//	    port: /dev/ttyUSB1
//	    kick_sequence: ["1B", "70", "00", "19", "FA"]
//	  printer:
//	    enabled: true
//	    family: epson
//	    interface: "192.168.0.90:9100"
//	    columns: 48
package config
