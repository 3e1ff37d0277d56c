package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/rbac"
)

// granteeColumn names the access_policies column matching a caller of
// client type. NoAccessCheck callers need no grant and get "".
func granteeColumn(client rbac.AccessClientType) (string, error) {
	switch client {
	case rbac.AccessClientUser:
		return "grantee_user_id", nil
	case rbac.AccessClientServiceAccount:
		return "grantee_service_account_id", nil
	case rbac.AccessClientNoAccessCheck:
		return "", nil
	}
	return "", fmt.Errorf("unknown access client type %q", client)
}

// resolveAccess folds every grant matching target for grantee. target is a
// boolean SQL condition over access_policies taking $1 as the resource id.
func resolveAccess(ctx context.Context, q queryer, target string, id, grantee uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	column, err := granteeColumn(client)
	if err != nil {
		return rbac.Access{}, err
	}
	if column == "" {
		return rbac.Access{Read: true, Write: true}, nil
	}

	var access rbac.Access
	if err := q.QueryRowContext(ctx, `
		SELECT COALESCE(BOOL_OR(read), FALSE), COALESCE(BOOL_OR(write), FALSE)
		FROM access_policies
		WHERE (`+target+`) AND `+column+` = $2
	`, id, grantee).Scan(&access.Read, &access.Write); err != nil {
		return rbac.Access{}, fmt.Errorf("failed to resolve access: %w", err)
	}
	return access, nil
}
