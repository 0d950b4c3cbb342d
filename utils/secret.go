package utils

import "github.com/sethvargo/go-password/password"

// GenerateSecret produces a random signing secret for session tokens. It is
// generated once on first start and persisted to the config file.
func GenerateSecret() (string, error) {
	return password.Generate(48, 12, 0, false, true)
}
