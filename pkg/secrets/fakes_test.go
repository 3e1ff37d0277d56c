package secrets

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// grants maps resource id -> user id -> access
type grants map[uuid.UUID]map[uuid.UUID]rbac.Access

func (g grants) set(resource, user uuid.UUID, access rbac.Access) {
	if g[resource] == nil {
		g[resource] = map[uuid.UUID]rbac.Access{}
	}
	g[resource][user] = access
}

func (g grants) get(resource, user uuid.UUID, client rbac.AccessClientType) rbac.Access {
	if client == rbac.AccessClientNoAccessCheck {
		return rbac.Access{Read: true, Write: true}
	}
	return g[resource][user]
}

type fakeProjects struct {
	rows        map[uuid.UUID]*Project
	grants      grants
	lookups     int
	deleteCalls [][]uuid.UUID
	failAccess  error
	// reverse returns loaded rows in the opposite order of the ids asked for
	reverse bool
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{rows: map[uuid.UUID]*Project{}, grants: grants{}}
}

func (f *fakeProjects) GetByID(_ context.Context, id uuid.UUID) (*Project, error) {
	return f.rows[id], nil
}

func (f *fakeProjects) GetManyByOrganizationID(_ context.Context, orgID, userID uuid.UUID, client rbac.AccessClientType) ([]*Project, error) {
	var out []*Project
	for _, p := range f.rows {
		if p.OrganizationID == orgID && f.grants.get(p.ID, userID, client).Read {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjects) GetManyWithSecretsByIDs(_ context.Context, ids []uuid.UUID) ([]*Project, error) {
	var out []*Project
	for _, id := range ids {
		if p, ok := f.rows[id]; ok {
			out = append(out, p)
		}
	}
	if f.reverse {
		reverseRows(out)
	}
	return out, nil
}

func (f *fakeProjects) AccessToProject(_ context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	f.lookups++
	if f.failAccess != nil {
		return rbac.Access{}, f.failAccess
	}
	return f.grants.get(id, userID, client), nil
}

func (f *fakeProjects) Create(_ context.Context, p *Project, userID uuid.UUID, _ rbac.AccessClientType) error {
	f.rows[p.ID] = p
	f.grants.set(p.ID, userID, rbac.Access{Read: true, Write: true})
	return nil
}

func (f *fakeProjects) Replace(_ context.Context, p *Project) error {
	f.rows[p.ID] = p
	return nil
}

func (f *fakeProjects) DeleteManyByID(_ context.Context, ids []uuid.UUID) error {
	f.deleteCalls = append(f.deleteCalls, ids)
	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

type fakeSecrets struct {
	rows        map[uuid.UUID]*Secret
	grants      grants
	deleteCalls [][]uuid.UUID
	reverse     bool
}

func (f *fakeSecrets) GetManyByIDs(_ context.Context, ids []uuid.UUID) ([]*Secret, error) {
	var out []*Secret
	for _, id := range ids {
		if s, ok := f.rows[id]; ok {
			out = append(out, s)
		}
	}
	if f.reverse {
		reverseRows(out)
	}
	return out, nil
}

func reverseRows[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

func (f *fakeSecrets) AccessToSecret(_ context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	return f.grants.get(id, userID, client), nil
}

func (f *fakeSecrets) DeleteManyByID(_ context.Context, ids []uuid.UUID) error {
	f.deleteCalls = append(f.deleteCalls, ids)
	return nil
}

type fakeAccounts struct {
	rows    map[uuid.UUID]*ServiceAccount
	grants  grants
	created int
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*ServiceAccount, error) {
	return f.rows[id], nil
}

func (f *fakeAccounts) GetManyByOrganizationID(_ context.Context, orgID, userID uuid.UUID, client rbac.AccessClientType) ([]*ServiceAccount, error) {
	var out []*ServiceAccount
	for _, a := range f.rows {
		if a.OrganizationID == orgID && f.grants.get(a.ID, userID, client).Read {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) AccessToServiceAccount(_ context.Context, id, userID uuid.UUID, client rbac.AccessClientType) (rbac.Access, error) {
	return f.grants.get(id, userID, client), nil
}

func (f *fakeAccounts) Create(_ context.Context, a *ServiceAccount, userID uuid.UUID) error {
	f.created++
	f.rows[a.ID] = a
	f.grants.set(a.ID, userID, rbac.Access{Read: true, Write: true})
	return nil
}

func (f *fakeAccounts) Replace(_ context.Context, a *ServiceAccount) error {
	f.rows[a.ID] = a
	return nil
}

type fakeApiKeys struct {
	rows    map[uuid.UUID]*ApiKey
	listed  int
	revoked []uuid.UUID
}

func (f *fakeApiKeys) GetManyByServiceAccountID(_ context.Context, serviceAccountID uuid.UUID) ([]*ApiKey, error) {
	f.listed++
	var out []*ApiKey
	for _, k := range f.rows {
		if k.ServiceAccountID == serviceAccountID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeApiKeys) Create(_ context.Context, key *ApiKey) error {
	f.rows[key.ID] = key
	return nil
}

func (f *fakeApiKeys) DeleteManyByServiceAccount(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	f.revoked = append(f.revoked, ids...)
	return nil
}

func (f *fakeApiKeys) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, k := range f.rows {
		if k.Expired(now) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

type fixedSecret struct{}

func (fixedSecret) GenerateSecret() (string, string, error) { return "client-secret", "client-secret-hash", nil }

// actor builds a human actor in orgID.
func actor(orgID uuid.UUID, memberType auth.MemberType, client auth.ClientType, secretsManager bool) *auth.ActorContext {
	return auth.NewActorContext(auth.Human(uuid.New()), client, auth.Membership{
		OrganizationID:       orgID,
		Type:                 memberType,
		AccessSecretsManager: secretsManager,
	})
}
