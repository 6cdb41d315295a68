package redis

import "fmt"

// sessionKey returns the Redis key for a Session
func sessionKey(prefix, token string) string {
	return fmt.Sprintf("%s:session:%s", prefix, token)
}
