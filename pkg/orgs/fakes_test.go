package orgs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/platinummonkey/warden/pkg/auth"
)

// memStore is an in-memory backing for every repository the service uses.
// Mutating calls enforce the confirmed-owner guard the way the Postgres
// repository does.
type memStore struct {
	mu       sync.Mutex
	orgs     map[uuid.UUID]*Organization
	members  map[uuid.UUID]*OrganizationUser
	users    map[uuid.UUID]*User
	policies map[uuid.UUID]Policies
	groups   map[uuid.UUID][]uuid.UUID
	colls    map[uuid.UUID][]CollectionAccess

	// guardDisabled skips the commit-time owner check
	guardDisabled bool
	// forceOwnerGuard makes every owner-reducing write fail
	forceOwnerGuard bool

	createManyCalls int
	upsertManyCalls int
	deleteManyCalls [][]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		orgs:     make(map[uuid.UUID]*Organization),
		members:  make(map[uuid.UUID]*OrganizationUser),
		users:    make(map[uuid.UUID]*User),
		policies: make(map[uuid.UUID]Policies),
		groups:   make(map[uuid.UUID][]uuid.UUID),
		colls:    make(map[uuid.UUID][]CollectionAccess),
	}
}

func cloneMember(ou *OrganizationUser) *OrganizationUser {
	c := *ou
	if ou.Permissions != nil {
		p := *ou.Permissions
		c.Permissions = &p
	}
	return &c
}

func (m *memStore) member(id uuid.UUID) *OrganizationUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ou, ok := m.members[id]; ok {
		return cloneMember(ou)
	}
	return nil
}

func (m *memStore) countMembers(orgID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ou := range m.members {
		if ou.OrganizationID == orgID {
			n++
		}
	}
	return n
}

// ownersLeft counts confirmed owners of orgID once excluded are gone,
// treating replacement as the new version of its row. Callers hold mu.
func (m *memStore) ownersLeft(orgID uuid.UUID, excluded map[uuid.UUID]bool, replacement *OrganizationUser) int {
	n := 0
	for _, ou := range m.members {
		if ou.OrganizationID != orgID || excluded[ou.ID] {
			continue
		}
		if replacement != nil && replacement.ID == ou.ID {
			ou = replacement
		}
		if ou.IsConfirmedOwner() {
			n++
		}
	}
	return n
}

func (m *memStore) violatesGuard(orgID uuid.UUID, excluded map[uuid.UUID]bool, replacement *OrganizationUser) bool {
	if m.forceOwnerGuard {
		return true
	}
	return !m.guardDisabled && m.ownersLeft(orgID, nil, nil) > 0 && m.ownersLeft(orgID, excluded, replacement) == 0
}

// fakeOrgs implements OrganizationRepository
type fakeOrgs struct{ *memStore }

func (f fakeOrgs) GetByID(_ context.Context, id uuid.UUID) (*Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if org, ok := f.orgs[id]; ok {
		c := *org
		return &c, nil
	}
	return nil, nil
}

func (f fakeOrgs) Replace(_ context.Context, org *Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *org
	f.orgs[org.ID] = &c
	return nil
}

func (f fakeOrgs) Delete(_ context.Context, org *Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orgs, org.ID)
	return nil
}

// fakeMembers implements OrganizationUserRepository
type fakeMembers struct{ *memStore }

func (f fakeMembers) GetByID(_ context.Context, id uuid.UUID) (*OrganizationUser, error) {
	return f.member(id), nil
}

func (f fakeMembers) GetMany(_ context.Context, ids []uuid.UUID) ([]*OrganizationUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*OrganizationUser
	for _, id := range ids {
		if ou, ok := f.members[id]; ok {
			out = append(out, cloneMember(ou))
		}
	}
	return out, nil
}

func (f fakeMembers) GetManyByOrganization(_ context.Context, orgID uuid.UUID, memberType *auth.MemberType) ([]*OrganizationUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*OrganizationUser
	for _, ou := range f.members {
		if ou.OrganizationID == orgID && (memberType == nil || ou.Type == *memberType) {
			out = append(out, cloneMember(ou))
		}
	}
	return out, nil
}

func (f fakeMembers) GetManyByManyUsers(_ context.Context, userIDs []uuid.UUID) ([]*OrganizationUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var out []*OrganizationUser
	for _, ou := range f.members {
		if ou.UserID != nil && want[*ou.UserID] {
			out = append(out, cloneMember(ou))
		}
	}
	return out, nil
}

func (f fakeMembers) GetCountByOrganization(_ context.Context, orgID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ou := range f.members {
		if ou.OrganizationID == orgID && ou.Status != StatusRevoked {
			n++
		}
	}
	return n, nil
}

func (f fakeMembers) GetCountByFreeOrganizationAdminUser(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ou := range f.members {
		if ou.UserID == nil || *ou.UserID != userID || ou.Status != StatusConfirmed {
			continue
		}
		if ou.Type != auth.MemberTypeOwner && ou.Type != auth.MemberTypeAdmin {
			continue
		}
		if org, ok := f.orgs[ou.OrganizationID]; ok && org.IsFree() {
			n++
		}
	}
	return n, nil
}

func (f fakeMembers) Create(ctx context.Context, ou *OrganizationUser) error {
	return f.CreateMany(ctx, []*OrganizationUser{ou})
}

func (f fakeMembers) CreateMany(_ context.Context, ous []*OrganizationUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createManyCalls++
	for _, ou := range ous {
		f.members[ou.ID] = cloneMember(ou)
	}
	return nil
}

func (f fakeMembers) Upsert(ctx context.Context, ou *OrganizationUser) error {
	return f.UpsertMany(ctx, []*OrganizationUser{ou})
}

func (f fakeMembers) UpsertMany(_ context.Context, ous []*OrganizationUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertManyCalls++
	for _, ou := range ous {
		f.members[ou.ID] = cloneMember(ou)
	}
	return nil
}

func (f fakeMembers) ReplaceMany(_ context.Context, ous []*OrganizationUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ou := range ous {
		f.members[ou.ID] = cloneMember(ou)
	}
	return nil
}

func (f fakeMembers) ReplaceWithCollections(_ context.Context, ou *OrganizationUser, collections []CollectionAccess) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.violatesGuard(ou.OrganizationID, nil, ou) {
		return ErrLastConfirmedOwner
	}
	f.members[ou.ID] = cloneMember(ou)
	if collections != nil {
		f.colls[ou.ID] = collections
	}
	return nil
}

func (f fakeMembers) UpdateGroups(_ context.Context, orgUserID uuid.UUID, groupIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[orgUserID] = groupIDs
	return nil
}

func (f fakeMembers) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ou, ok := f.members[id]
	if !ok {
		return nil
	}
	if f.violatesGuard(ou.OrganizationID, map[uuid.UUID]bool{id: true}, nil) {
		return ErrLastConfirmedOwner
	}
	ou.Status = StatusRevoked
	return nil
}

func (f fakeMembers) Restore(_ context.Context, id uuid.UUID, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ou, ok := f.members[id]; ok {
		ou.Status = status
	}
	return nil
}

func (f fakeMembers) DeleteMany(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	excluded := make(map[uuid.UUID]bool, len(ids))
	orgIDs := make(map[uuid.UUID]bool)
	for _, id := range ids {
		excluded[id] = true
		if ou, ok := f.members[id]; ok {
			orgIDs[ou.OrganizationID] = true
		}
	}
	for orgID := range orgIDs {
		if f.violatesGuard(orgID, excluded, nil) {
			return ErrLastConfirmedOwner
		}
	}
	f.deleteManyCalls = append(f.deleteManyCalls, ids)
	for _, id := range ids {
		delete(f.members, id)
	}
	return nil
}

// fakePolicies implements PolicyRepository
type fakePolicies struct{ *memStore }

func (f fakePolicies) GetManyByOrganizationID(_ context.Context, orgID uuid.UUID) (Policies, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.policies[orgID], nil
}

// fakeUsers implements UserRepository
type fakeUsers struct{ *memStore }

func (f fakeUsers) GetMany(_ context.Context, ids []uuid.UUID) ([]*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) Replace(_ context.Context, user *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

// fakeTwoFactor enables two-step login for the listed users
type fakeTwoFactor map[uuid.UUID]bool

func (f fakeTwoFactor) TwoFactorIsEnabled(_ context.Context, user *User) (bool, error) {
	return f[user.ID], nil
}

type fakeMail struct {
	mu        sync.Mutex
	bulk      [][]InviteMessage
	confirmed []string
}

func (f *fakeMail) BulkSendOrganizationInviteEmail(_ context.Context, _ string, invites []InviteMessage, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, invites)
	return nil
}

func (f *fakeMail) SendOrganizationConfirmedEmail(_ context.Context, _, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, email)
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []UserEvent
	calls  int
}

func (f *fakeEvents) LogOrganizationUserEvent(ctx context.Context, event UserEvent) error {
	return f.LogOrganizationUserEvents(ctx, []UserEvent{event})
}

func (f *fakeEvents) LogOrganizationUserEvents(_ context.Context, events []UserEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEvents) ofType(t EventType) []UserEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []UserEvent
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeReferences struct {
	mu     sync.Mutex
	events []ReferenceEvent
}

func (f *fakeReferences) RaiseEvent(_ context.Context, event ReferenceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeAbilities struct {
	mu      sync.Mutex
	cached  map[uuid.UUID]Ability
	upserts []Ability
	deleted []uuid.UUID
	getErr  error
}

func (f *fakeAbilities) GetOrganizationAbility(_ context.Context, orgID uuid.UUID) (*Ability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if a, ok := f.cached[orgID]; ok {
		return &a, nil
	}
	return nil, nil
}

func (f *fakeAbilities) UpsertOrganizationAbility(_ context.Context, ability Ability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, ability)
	return nil
}

func (f *fakeAbilities) DeleteOrganizationAbility(_ context.Context, orgID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, orgID)
	return nil
}

// fakeKeyConnector reports Key Connector for the listed organizations
type fakeKeyConnector map[uuid.UUID]bool

func (f fakeKeyConnector) UsesKeyConnector(_ context.Context, orgID uuid.UUID) (bool, error) {
	return f[orgID], nil
}

type fakeTokens struct{}

func (fakeTokens) Generate(orgUserID uuid.UUID, email string) (string, error) {
	return "token-" + orgUserID.String() + "-" + email, nil
}

// harness wires a Service to in-memory collaborators
type harness struct {
	store      *memStore
	twoFactor  fakeTwoFactor
	keyConn    fakeKeyConnector
	mail       *fakeMail
	events     *fakeEvents
	references *fakeReferences
	abilities  *fakeAbilities
	logs       *test.Hook
	svc        *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		store:      newMemStore(),
		twoFactor:  fakeTwoFactor{},
		keyConn:    fakeKeyConnector{},
		mail:       &fakeMail{},
		events:     &fakeEvents{},
		references: &fakeReferences{},
		abilities:  &fakeAbilities{},
		logs:       hook,
	}
	h.svc = NewService(Dependencies{
		Organizations: fakeOrgs{h.store},
		Members:       fakeMembers{h.store},
		Policies:      fakePolicies{h.store},
		Users:         fakeUsers{h.store},
		TwoFactor:     h.twoFactor,
		Mail:          h.mail,
		Events:        h.events,
		References:    h.references,
		Abilities:     h.abilities,
		KeyConnector:  h.keyConn,
		InviteTokens:  fakeTokens{},
		Logger:        logger,
	})
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return fixed }
	return h
}

func (h *harness) addOrg(plan PlanType, mutate ...func(*Organization)) *Organization {
	p, _ := PlanByType(plan)
	org := &Organization{
		ID:                    uuid.New(),
		Name:                  "Acme",
		Enabled:               true,
		GatewayCustomerID:     "cus_123",
		GatewaySubscriptionID: "sub_123",
	}
	p.apply(org, 10)
	if plan == PlanFree {
		seats := p.BaseSeats
		org.Seats = &seats
	}
	for _, fn := range mutate {
		fn(org)
	}
	h.store.orgs[org.ID] = org
	return org
}

func (h *harness) addUser(email string) *User {
	u := &User{ID: uuid.New(), Email: email, HasMasterPassword: true}
	h.store.users[u.ID] = u
	return u
}

// addMember creates a membership with an attached user account unless the
// status is Invited.
func (h *harness) addMember(org *Organization, t auth.MemberType, status Status) *OrganizationUser {
	ou := &OrganizationUser{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Type:           t,
		Status:         status,
	}
	if status == StatusInvited {
		email := ou.ID.String() + "@example.com"
		ou.Email = &email
	} else {
		u := h.addUser(ou.ID.String() + "@example.com")
		ou.UserID = &u.ID
	}
	h.store.members[ou.ID] = ou
	return ou
}

func (h *harness) enablePolicy(org *Organization, t PolicyType) {
	h.store.policies[org.ID] = append(h.store.policies[org.ID], &Policy{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Type:           t,
		Enabled:        true,
	})
}

// actorFor builds the request context for the user behind ou
func actorFor(ou *OrganizationUser, perms ...auth.Permissions) *auth.ActorContext {
	m := auth.Membership{OrganizationID: ou.OrganizationID, Type: ou.Type}
	if len(perms) > 0 {
		m.Permissions = perms[0]
	}
	return auth.NewActorContext(auth.Human(*ou.UserID), auth.ClientTypeUser, m)
}
