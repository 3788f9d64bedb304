// Package ap creates the per-boot Wi-Fi credentials and starts the
// provisioning access point.
package ap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrPassphrase reports a WPA2 passphrase outside 8 to 63 characters.
var ErrPassphrase = errors.New("ap: passphrase must be 8 to 63 characters")

// Credentials joins the access point. They live for one boot and are never
// persisted.
type Credentials struct {
	SSID     string
	Password string
}

// NewCredentials returns credentials whose SSID is prefix followed by a
// random four-digit hex suffix, so neighbouring labels advertise distinct
// networks.
func NewCredentials(prefix, password string) (Credentials, error) {
	if n := len(password); n < 8 || n > 63 {
		return Credentials{}, ErrPassphrase
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Credentials{}, fmt.Errorf("ap: ssid suffix: %w", err)
	}
	suffix := strings.ToUpper(id.String()[:4])
	ssid := prefix + "-" + suffix
	if len(ssid) > 32 {
		return Credentials{}, fmt.Errorf("ap: ssid %q longer than 32 bytes", ssid)
	}
	return Credentials{SSID: ssid, Password: password}, nil
}

// AccessPoint brings up a wireless network and returns the address clients
// reach the device at.
type AccessPoint interface {
	Start(ctx context.Context, creds Credentials) (string, error)
}

// Static is an AccessPoint managed outside the process, such as a hostapd
// configuration. Start only reports the known address.
type Static struct {
	Addr string
	Log  zerolog.Logger
}

// Start implements AccessPoint.
func (s Static) Start(ctx context.Context, creds Credentials) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Addr == "" {
		return "", errors.New("ap: no address configured")
	}
	s.Log.Info().Str("ssid", creds.SSID).Str("addr", s.Addr).Msg("access point ready")
	return s.Addr, nil
}
