package config

import (
	"errors"
	"os"
)

// Credentials holds the Spotify application credentials. They are read once
// at startup and passed by value wherever they are needed. Nothing mutates
// process environment afterwards.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

var ErrMissingCredentials = errors.New("missing SPOTIFY_CLIENT_ID or SPOTIFY_CLIENT_SECRET environment variable")

// CredentialsFromEnv reads Spotify credentials from the environment. The
// legacy CLIENTID/CLIENTSECRET names are accepted as fallbacks.
func CredentialsFromEnv() (Credentials, error) {
	id := os.Getenv("SPOTIFY_CLIENT_ID")
	if id == "" {
		id = os.Getenv("CLIENTID")
	}
	secret := os.Getenv("SPOTIFY_CLIENT_SECRET")
	if secret == "" {
		secret = os.Getenv("CLIENTSECRET")
	}
	if id == "" || secret == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return Credentials{ClientID: id, ClientSecret: secret}, nil
}
