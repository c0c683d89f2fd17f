package utils

import (
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	godotenv.Load()
}

// Getenv returns the value of the environment variable, or fallback when unset.
func Getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func JWTSecret() string {
	return os.Getenv("SECRET")
}

// EventToken is the shared token the web service presents when publishing
// events to the event service.
func EventToken() string {
	return os.Getenv("EVENT_TOKEN")
}
