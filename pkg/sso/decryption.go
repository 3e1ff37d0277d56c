package sso

import (
	"github.com/platinummonkey/warden/pkg/orgs"
)

// BuildDecryptionOptions computes a member's unlock options. A nil or
// disabled config yields only the master password flag. Trusted device
// encryption is hidden while the feature is switched off, even for
// organizations configured with it.
func BuildDecryptionOptions(user *orgs.User, cfg *Config, policies orgs.Policies, trustedDeviceEnabled bool) DecryptionOptions {
	opts := DecryptionOptions{}
	if user != nil {
		opts.HasMasterPassword = user.HasMasterPassword
	}
	if cfg == nil || !cfg.Enabled {
		return opts
	}

	switch cfg.Data.MemberDecryptionType {
	case DecryptionTrustedDeviceEncryption:
		if trustedDeviceEnabled {
			opts.TrustedDeviceOption = &TrustedDeviceOption{
				HasAdminApproval: policies.Enabled(orgs.PolicyResetPassword),
			}
		}
	case DecryptionKeyConnector:
		opts.KeyConnectorOption = &KeyConnectorOption{KeyConnectorURL: cfg.Data.KeyConnectorURL}
	}

	return opts
}
