package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/secrets"
)

func accessRows(read, write bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"read", "write"}).AddRow(read, write)
}

func TestGranteeColumn(t *testing.T) {
	tests := []struct {
		client  rbac.AccessClientType
		want    string
		wantErr bool
	}{
		{client: rbac.AccessClientUser, want: "grantee_user_id"},
		{client: rbac.AccessClientServiceAccount, want: "grantee_service_account_id"},
		{client: rbac.AccessClientNoAccessCheck, want: ""},
		{client: rbac.AccessClientType("robot"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.client), func(t *testing.T) {
			got, err := granteeColumn(tt.client)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectRepository_Access(t *testing.T) {
	projectID, userID := uuid.New(), uuid.New()

	t.Run("user grant", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProjectRepository(db, nil)

		mock.ExpectQuery("(?s)BOOL_OR.*granted_project_id = \\$1.*grantee_user_id = \\$2").
			WithArgs(projectID, userID).
			WillReturnRows(accessRows(true, false))

		access, err := repo.AccessToProject(context.Background(), projectID, userID, rbac.AccessClientUser)
		require.NoError(t, err)
		assert.Equal(t, rbac.Access{Read: true}, access)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no access check skips the query", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProjectRepository(db, nil)

		access, err := repo.AccessToProject(context.Background(), projectID, userID, rbac.AccessClientNoAccessCheck)
		require.NoError(t, err)
		assert.Equal(t, rbac.Access{Read: true, Write: true}, access)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_GetManyByOrganizationID(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	now := time.Now()
	columns := []string{"id", "organization_id", "name", "created_at", "updated_at"}

	t.Run("user listing reads from the replica", func(t *testing.T) {
		primary, primaryMock := setupMockDB(t)
		replica, replicaMock := setupMockDB(t)
		repo := NewProjectRepository(primary, SinglePool(replica))

		replicaMock.ExpectQuery("(?s)FROM projects p WHERE p.organization_id = \\$1 AND EXISTS.*ap.grantee_user_id = \\$2").
			WithArgs(orgID, userID).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(uuid.New().String(), orgID.String(), "Backend", now, now))

		projects, err := repo.GetManyByOrganizationID(context.Background(), orgID, userID, rbac.AccessClientUser)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "Backend", projects[0].Name)
		assert.NoError(t, replicaMock.ExpectationsWereMet())
		assert.NoError(t, primaryMock.ExpectationsWereMet())
	})

	t.Run("each read asks the pool for a handle", func(t *testing.T) {
		primary, _ := setupMockDB(t)
		first, firstMock := setupMockDB(t)
		second, secondMock := setupMockDB(t)
		pool := &rotatingPool{dbs: []*sql.DB{first, second}}
		repo := NewApiKeyRepository(primary, pool)
		accountID := uuid.New()

		for _, m := range []sqlmock.Sqlmock{firstMock, secondMock} {
			m.ExpectQuery("FROM api_keys").WithArgs(accountID).
				WillReturnRows(sqlmock.NewRows([]string{"id"}))
		}

		_, _ = repo.GetManyByServiceAccountID(context.Background(), accountID)
		_, _ = repo.GetManyByServiceAccountID(context.Background(), accountID)

		assert.Equal(t, 2, pool.calls)
		assert.NoError(t, firstMock.ExpectationsWereMet())
		assert.NoError(t, secondMock.ExpectationsWereMet())
	})

	t.Run("admins see every project", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProjectRepository(db, nil)

		mock.ExpectQuery("FROM projects p WHERE p.organization_id = \\$1 ORDER BY").
			WithArgs(orgID).
			WillReturnRows(sqlmock.NewRows(columns))

		projects, err := repo.GetManyByOrganizationID(context.Background(), orgID, userID, rbac.AccessClientNoAccessCheck)
		require.NoError(t, err)
		assert.Empty(t, projects)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_GetManyWithSecretsByIDs(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProjectRepository(db, nil)
	orgID := uuid.New()
	withSecrets, empty := uuid.New(), uuid.New()
	s1, s2 := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("(?s)ARRAY_AGG.*FROM projects p.*LEFT JOIN project_secrets").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "created_at", "updated_at", "secret_ids"}).
			AddRow(withSecrets.String(), orgID.String(), "A", now, now, "{"+s1.String()+","+s2.String()+"}").
			AddRow(empty.String(), orgID.String(), "B", now, now, "{}"))

	projects, err := repo.GetManyWithSecretsByIDs(context.Background(), []uuid.UUID{withSecrets, empty})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, []uuid.UUID{s1, s2}, projects[0].SecretIDs)
	assert.Empty(t, projects[1].SecretIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_Create(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	now := time.Now()

	t.Run("grants the creating user", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProjectRepository(db, nil)
		project := &secrets.Project{OrganizationID: orgID, Name: "Backend"}

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO projects").
			WithArgs(sqlmock.AnyArg(), orgID, "Backend").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec("INSERT INTO access_policies \\(grantee_user_id, granted_project_id").
			WithArgs(userID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(context.Background(), project, userID, rbac.AccessClientUser))
		assert.NotEqual(t, uuid.Nil, project.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admins get no grant row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProjectRepository(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO projects").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(context.Background(), &secrets.Project{OrganizationID: orgID}, userID, rbac.AccessClientNoAccessCheck))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("grant failure rolls back", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewProjectRepository(db, nil)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO projects").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec("INSERT INTO access_policies").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := repo.Create(context.Background(), &secrets.Project{OrganizationID: orgID}, userID, rbac.AccessClientServiceAccount)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSecretRepository(t *testing.T) {
	secretID, userID := uuid.New(), uuid.New()

	t.Run("access through a project", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSecretRepository(db)

		mock.ExpectQuery("(?s)granted_secret_id = \\$1 OR granted_project_id IN.*grantee_service_account_id = \\$2").
			WithArgs(secretID, userID).
			WillReturnRows(accessRows(true, true))

		access, err := repo.AccessToSecret(context.Background(), secretID, userID, rbac.AccessClientServiceAccount)
		require.NoError(t, err)
		assert.True(t, access.Write)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("secrets carry their projects", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSecretRepository(db)
		orgID, projectID := uuid.New(), uuid.New()
		now := time.Now()

		mock.ExpectQuery("(?s)FROM secrets s.*LEFT JOIN project_secrets").
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "key", "value", "note", "created_at", "updated_at", "project_ids"}).
				AddRow(secretID.String(), orgID.String(), "DB_PASSWORD", "enc", "", now, now, "{"+projectID.String()+"}"))

		result, err := repo.GetManyByIDs(context.Background(), []uuid.UUID{secretID})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, []uuid.UUID{projectID}, result[0].ProjectIDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bulk delete binds a uuid array", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSecretRepository(db)
		ids := []uuid.UUID{uuid.New(), uuid.New()}

		mock.ExpectExec("DELETE FROM secrets WHERE id = ANY\\(\\$1::uuid\\[\\]\\)").
			WithArgs(uuidArray(ids)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, repo.DeleteManyByID(context.Background(), ids))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestServiceAccountRepository(t *testing.T) {
	orgID, userID, accountID := uuid.New(), uuid.New(), uuid.New()

	t.Run("service accounts list nothing", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewServiceAccountRepository(db, nil)

		accounts, err := repo.GetManyByOrganizationID(context.Background(), orgID, userID, rbac.AccessClientServiceAccount)
		require.NoError(t, err)
		assert.Nil(t, accounts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("service accounts hold no grant on an account", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewServiceAccountRepository(db, nil)

		access, err := repo.AccessToServiceAccount(context.Background(), accountID, userID, rbac.AccessClientServiceAccount)
		require.NoError(t, err)
		assert.Equal(t, rbac.Access{}, access)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("users resolve their grant", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewServiceAccountRepository(db, nil)

		mock.ExpectQuery("(?s)granted_service_account_id = \\$1.*grantee_user_id = \\$2").
			WithArgs(accountID, userID).
			WillReturnRows(accessRows(false, false))

		access, err := repo.AccessToServiceAccount(context.Background(), accountID, userID, rbac.AccessClientUser)
		require.NoError(t, err)
		assert.False(t, access.Read)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create grants the user", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewServiceAccountRepository(db, nil)
		account := &secrets.ServiceAccount{OrganizationID: orgID, Name: "ci"}
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO service_accounts").
			WithArgs(sqlmock.AnyArg(), orgID, "ci").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec("INSERT INTO access_policies \\(grantee_user_id, granted_service_account_id").
			WithArgs(userID, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Create(context.Background(), account, userID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApiKeyRepository(t *testing.T) {
	accountID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("list scans scope and optional expiry", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewApiKeyRepository(db, nil)
		expires := now.Add(24 * time.Hour)

		mock.ExpectQuery("(?s)FROM api_keys.*WHERE service_account_id = \\$1").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "service_account_id", "name", "client_secret_hash", "scope", "encrypted_payload", "key", "expire_at", "created_at", "updated_at"}).
				AddRow(uuid.New().String(), accountID.String(), "deploy", "hash", "{api.secrets.access}", "payload", "key", expires, now, now).
				AddRow(uuid.New().String(), accountID.String(), "forever", "hash", "{}", "payload", "key", nil, now, now))

		keys, err := repo.GetManyByServiceAccountID(context.Background(), accountID)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, []string{"api.secrets.access"}, keys[0].Scope)
		require.NotNil(t, keys[0].ExpireAt)
		assert.Equal(t, expires, *keys[0].ExpireAt)
		assert.Nil(t, keys[1].ExpireAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete expired reports the count", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewApiKeyRepository(db, nil)

		mock.ExpectExec("DELETE FROM api_keys WHERE expire_at IS NOT NULL AND expire_at <= \\$1").
			WithArgs(now).
			WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := repo.DeleteExpired(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bulk delete is scoped to the account", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewApiKeyRepository(db, nil)
		ids := []uuid.UUID{uuid.New()}

		mock.ExpectExec("DELETE FROM api_keys WHERE service_account_id = \\$1 AND id = ANY").
			WithArgs(accountID, uuidArray(ids)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.DeleteManyByServiceAccount(context.Background(), accountID, ids))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type rotatingPool struct {
	dbs   []*sql.DB
	calls int
}

func (p *rotatingPool) Replica() *sql.DB {
	db := p.dbs[p.calls%len(p.dbs)]
	p.calls++
	return db
}
