package sso

import (
	"time"

	"github.com/google/uuid"
)

// MemberDecryptionType is how members of an SSO organization unlock their vault
type MemberDecryptionType string

const (
	DecryptionMasterPassword          MemberDecryptionType = "master_password"
	DecryptionKeyConnector            MemberDecryptionType = "key_connector"
	DecryptionTrustedDeviceEncryption MemberDecryptionType = "trusted_device_encryption"
)

// Valid reports whether t is a known decryption type.
func (t MemberDecryptionType) Valid() bool {
	switch t {
	case DecryptionMasterPassword, DecryptionKeyConnector, DecryptionTrustedDeviceEncryption:
		return true
	}
	return false
}

// ConfigData is the stored body of an organization's SSO configuration
type ConfigData struct {
	MemberDecryptionType MemberDecryptionType `json:"member_decryption_type"`
	KeyConnectorURL      string               `json:"key_connector_url,omitempty"`
	Authority            string               `json:"authority,omitempty"`
	ClientID             string               `json:"client_id,omitempty"`
}

// Config is one organization's SSO configuration
type Config struct {
	ID             int64      `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Enabled        bool       `json:"enabled"`
	Data           ConfigData `json:"data"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UsesKeyConnector reports whether the configuration is enabled and unlocks
// members through Key Connector.
func (c *Config) UsesKeyConnector() bool {
	return c != nil && c.Enabled && c.Data.MemberDecryptionType == DecryptionKeyConnector
}

// TrustedDeviceOption is offered when trusted device encryption is active
type TrustedDeviceOption struct {
	HasAdminApproval bool `json:"has_admin_approval"`
}

// KeyConnectorOption points the client at the organization's Key Connector
type KeyConnectorOption struct {
	KeyConnectorURL string `json:"key_connector_url"`
}

// DecryptionOptions lists the ways a member may unlock after SSO login
type DecryptionOptions struct {
	HasMasterPassword   bool                 `json:"has_master_password"`
	TrustedDeviceOption *TrustedDeviceOption `json:"trusted_device_option,omitempty"`
	KeyConnectorOption  *KeyConnectorOption  `json:"key_connector_option,omitempty"`
}
