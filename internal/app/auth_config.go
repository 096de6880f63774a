package app

import (
	"github.com/sonderhq/sonder-server/internal/auth"
	"github.com/sonderhq/sonder-server/internal/otp"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// OTPServiceOptions converts AuthConfig into options for the OTP service.
// Zero values defer to the service defaults.
func (c AuthConfig) OTPServiceOptions() []otp.Option {
	var opts []otp.Option
	if c.OTP.Digits > 0 {
		opts = append(opts, otp.WithDigits(c.OTP.Digits))
	}
	if c.OTP.Expiry > 0 {
		opts = append(opts, otp.WithExpiry(c.OTP.Expiry))
	}
	return opts
}
