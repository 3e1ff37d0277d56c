package sso

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/warden/pkg/orgs"
)

func TestBuildDecryptionOptions(t *testing.T) {
	withPassword := &orgs.User{Email: "sso_user@email.com", HasMasterPassword: true}
	withoutPassword := &orgs.User{Email: "sso_user@email.com"}
	resetPolicy := orgs.Policies{{Type: orgs.PolicyResetPassword, Enabled: true}}

	config := func(t MemberDecryptionType) *Config {
		return &Config{Enabled: true, Data: ConfigData{MemberDecryptionType: t, KeyConnectorURL: "https://key_connector.com"}}
	}

	tests := []struct {
		name     string
		user     *orgs.User
		cfg      *Config
		policies orgs.Policies
		flag     bool
		want     DecryptionOptions
	}{
		{
			name: "master password only",
			user: withPassword,
			cfg:  config(DecryptionMasterPassword),
			flag: true,
			want: DecryptionOptions{HasMasterPassword: true},
		},
		{
			name: "trusted device without reset policy",
			user: withPassword,
			cfg:  config(DecryptionTrustedDeviceEncryption),
			flag: true,
			want: DecryptionOptions{HasMasterPassword: true, TrustedDeviceOption: &TrustedDeviceOption{}},
		},
		{
			name:     "trusted device with reset policy has admin approval",
			user:     withPassword,
			cfg:      config(DecryptionTrustedDeviceEncryption),
			policies: resetPolicy,
			flag:     true,
			want:     DecryptionOptions{HasMasterPassword: true, TrustedDeviceOption: &TrustedDeviceOption{HasAdminApproval: true}},
		},
		{
			name: "trusted device and no master password",
			user: withoutPassword,
			cfg:  config(DecryptionTrustedDeviceEncryption),
			flag: true,
			want: DecryptionOptions{TrustedDeviceOption: &TrustedDeviceOption{}},
		},
		{
			name:     "trusted device hidden while feature is off",
			user:     withPassword,
			cfg:      config(DecryptionTrustedDeviceEncryption),
			policies: resetPolicy,
			flag:     false,
			want:     DecryptionOptions{HasMasterPassword: true},
		},
		{
			name: "key connector",
			user: withPassword,
			cfg:  config(DecryptionKeyConnector),
			want: DecryptionOptions{HasMasterPassword: true, KeyConnectorOption: &KeyConnectorOption{KeyConnectorURL: "https://key_connector.com"}},
		},
		{
			name: "disabled config",
			user: withPassword,
			cfg:  &Config{Data: ConfigData{MemberDecryptionType: DecryptionKeyConnector}},
			want: DecryptionOptions{HasMasterPassword: true},
		},
		{
			name: "no config",
			user: withoutPassword,
			want: DecryptionOptions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDecryptionOptions(tt.user, tt.cfg, tt.policies, tt.flag))
		})
	}
}

func TestConfigUsesKeyConnector(t *testing.T) {
	var missing *Config
	assert.False(t, missing.UsesKeyConnector())
	assert.False(t, (&Config{Data: ConfigData{MemberDecryptionType: DecryptionKeyConnector}}).UsesKeyConnector())
	assert.True(t, (&Config{Enabled: true, Data: ConfigData{MemberDecryptionType: DecryptionKeyConnector}}).UsesKeyConnector())
	assert.False(t, (&Config{Enabled: true, Data: ConfigData{MemberDecryptionType: DecryptionMasterPassword}}).UsesKeyConnector())

	assert.True(t, DecryptionTrustedDeviceEncryption.Valid())
	assert.False(t, MemberDecryptionType("passkey").Valid())
}
