package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter config.
func Template() string {
	return gatewayTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(gatewayTemplate), 0o600)
}

const gatewayTemplate = `port = 18000
bind = "0.0.0.0"
environment = "General"
# JE | EJ | AUTO
direction = "JE"
# strict | evidence
auto_policy = "strict"
tokens = []

tls_cert_file = "server.crt"
tls_key_file = "server.key"

admin_listen_addr = "127.0.0.1:18001"
health_listen_addr = "127.0.0.1:18080"
cors_origins = ["http://localhost:3000"]

handshake_timeout = "10s"
idle_timeout = "0s"
write_timeout = "15s"
max_line_bytes = 1048576
watch = true

[engine]
command = ""
args = ["--direction", "{direction}", "--environment", "{environment}"]
env_file = ""
encoding = "shift_jis"
timeout = "30s"
`
