package cli

import (
	"os"
	"strconv"

	roomclient "github.com/mcoot/roomchat/internal/client"
)

// Config holds CLI configuration
type Config struct {
	Server     string
	OpsURL     string
	AdminToken string
	ClientID   string
	TokenDir   string
	CAFile     string
	Insecure   bool
	Plain      bool
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Server:     getEnvOrDefault("ROOMCHAT_SERVER", roomclient.DefaultConfig().Addr),
		OpsURL:     getEnvOrDefault("ROOMCHAT_OPS", "http://localhost:8080"),
		AdminToken: os.Getenv("ROOMCHAT_ADMIN_TOKEN"),
		ClientID:   getEnvOrDefault("ROOMCHAT_CLIENT_ID", roomclient.DefaultConfig().ClientID),
		TokenDir:   getEnvOrDefault("ROOMCHAT_TOKEN_DIR", roomclient.DefaultTokenDir()),
		CAFile:     os.Getenv("ROOMCHAT_CA_FILE"),
		Insecure:   getEnvBool("ROOMCHAT_INSECURE"),
		Output:     "text",
		Verbose:    false,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string) bool {
	val, _ := strconv.ParseBool(os.Getenv(key))
	return val
}
