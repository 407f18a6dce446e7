// Package config loads and validates magicportal configuration.
//
// # Core Components
//
// Config: the bridge mode, NATS connection settings, the multicast group
// list, agent addressing and the packet size bound.
//
// Loader: layers defaults, one or more files and environment overrides, then
// optionally validates the result.
//
// # File Formats
//
// The parser is picked from the file extension:
//
//   - .json  encoding/json
//   - .toml  github.com/pelletier/go-toml/v2
//   - .yaml, .yml  gopkg.in/yaml.v3
//
// Any other extension is a configuration error. Keys are snake_case in every
// format:
//
//	mode = "agent"
//	max_packet_size = 1024
//
//	[nats]
//	urls = ["nats://localhost:4222"]
//	auth_enabled = true
//	username = "bridge"
//	password = "secret"
//
//	[agent]
//	send_as_unicast = true
//
//	[agent.unicast_addrs]
//	"239.0.0.1:5000" = "10.0.0.5:6000"
//
//	[[multicast_groups]]
//	multicast_addr = "239.0.0.1:5000"
//	interface = "eth0"
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.EnableValidation(true)
//
//	cfg, err := loader.LoadFile("config.toml")
//	if err != nil {
//		return err
//	}
//
// # Environment Overrides
//
// Applied after all file layers:
//
//	MAGICPORTAL_MODE
//	MAGICPORTAL_NATS_URLS (comma separated)
//	MAGICPORTAL_NATS_USERNAME
//	MAGICPORTAL_NATS_PASSWORD
//	MAGICPORTAL_NATS_TOKEN
//	MAGICPORTAL_MAX_PACKET_SIZE
//
// # Security
//
// Files are size limited, must be regular files, and relative paths may not
// resolve outside the working directory. JSON nesting depth is bounded.
//
// Validation does not check that every group has a unicast destination when
// agent.send_as_unicast is set. A missing entry fails only the agent task for
// that group, so the other groups keep relaying.
package config
