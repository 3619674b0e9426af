package persist

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/tmwgo/server/internal/config"
	"github.com/tmwgo/server/internal/world"
)

// RepoSuite runs the repositories against a throwaway Postgres container.
type RepoSuite struct {
	suite.Suite
	container testcontainers.Container
	db        *DB
	accounts  *AccountRepo
	chars     *CharacterRepo
}

func TestRepoSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test, needs Docker")
	}
	suite.Run(t, new(RepoSuite))
}

func (s *RepoSuite) SetupSuite() {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		s.T().Skipf("postgres container unavailable: %v", err)
	}
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	cfg := config.DatabaseConfig{
		DSN:          fmt.Sprintf("postgres://test:test@%s:%d/test?sslmode=disable", host, port.Int()),
		MaxOpenConns: 4,
	}
	s.db, err = NewDB(ctx, cfg, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(RunMigrations(ctx, s.db.Pool))

	s.accounts = NewAccountRepo(s.db, bcrypt.MinCost)
	s.chars = NewCharacterRepo(s.db)
}

func (s *RepoSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RepoSuite) SetupTest() {
	_, err := s.db.Pool.Exec(context.Background(), `TRUNCATE accounts RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

func (s *RepoSuite) TestMigrationVersion() {
	v, err := MigrationVersion(context.Background(), s.db.Pool)
	s.Require().NoError(err)
	s.Equal(int64(1), v)
}

func (s *RepoSuite) TestAccountLifecycle() {
	ctx := context.Background()
	acc, err := s.accounts.Create(ctx, "alpha", "secret1")
	s.Require().NoError(err)
	s.NotZero(acc.ID)

	_, err = s.accounts.Create(ctx, "alpha", "other12")
	s.ErrorIs(err, ErrExists)

	loaded, err := s.accounts.Load(ctx, "alpha")
	s.Require().NoError(err)
	s.Require().NotNil(loaded)
	s.True(s.accounts.ValidatePassword(loaded.PasswordHash, "secret1"))
	s.False(s.accounts.ValidatePassword(loaded.PasswordHash, "wrong12"))

	s.Require().NoError(s.accounts.UpdatePassword(ctx, acc.ID, "newpass1"))
	s.Require().NoError(s.accounts.UpdateLastLogin(ctx, acc.ID))
	loaded, err = s.accounts.Load(ctx, "alpha")
	s.Require().NoError(err)
	s.True(s.accounts.ValidatePassword(loaded.PasswordHash, "newpass1"))
	s.NotNil(loaded.LastLogin)

	s.Require().NoError(s.accounts.Delete(ctx, acc.ID))
	s.ErrorIs(s.accounts.Delete(ctx, acc.ID), ErrNotFound)
	missing, err := s.accounts.Load(ctx, "alpha")
	s.NoError(err)
	s.Nil(missing)
}

func (s *RepoSuite) TestCharacterSaveAndLoad() {
	ctx := context.Background()
	acc, err := s.accounts.Create(ctx, "bravo", "secret1")
	s.Require().NoError(err)

	row := &CharacterRow{AccountID: acc.ID, Slot: 0, Name: "Hero", MapID: 1, X: 50, Y: 50}
	s.Require().NoError(s.chars.Create(ctx, row))
	s.ErrorIs(s.chars.Create(ctx, &CharacterRow{AccountID: acc.ID, Slot: 1, Name: "Hero"}), ErrExists)

	exists, err := s.chars.NameExists(ctx, "Hero")
	s.Require().NoError(err)
	s.True(exists)

	p, err := s.chars.Load(ctx, row.ID)
	s.Require().NoError(err)
	p.X, p.Y = 60, 61
	p.Inv.Add(501, 3)
	p.Inv.Add(1201, 1)
	p.Gear.Set(world.SlotWeapon, 1201)
	s.Require().NoError(s.chars.Save(ctx, p.Snapshot()))

	again, err := s.chars.Load(ctx, row.ID)
	s.Require().NoError(err)
	s.Equal(acc.ID, again.AccountID)
	s.Equal(60, again.X)
	s.Equal(61, again.Y)
	s.Equal(3, again.Inv.Count(501))
	s.Equal(uint32(1201), again.Gear.Slots[world.SlotWeapon])

	list, err := s.chars.ListByAccount(ctx, acc.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("Hero", list[0].Name)

	_, err = s.chars.Load(ctx, row.ID+100)
	s.ErrorIs(err, ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(assert.AnError))
	require.True(t, isUniqueViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
