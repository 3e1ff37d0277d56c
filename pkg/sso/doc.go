// Package sso computes member decryption options for organizations that log
// in through single sign-on, and reports Key Connector usage to the
// organization lifecycle.
//
// Protocol handling (OIDC, SAML) lives outside warden; this package only
// reads the stored configuration.
//
//	svc := sso.NewService(sso.NewStorage(db), policies, users, cfg.Features.TrustedDeviceEncryption, logger)
//	opts, err := svc.DecryptionOptions(ctx, orgID, userID)
package sso
