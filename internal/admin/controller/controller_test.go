package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avelar/orgadmin/internal/admin/db"
	"github.com/avelar/orgadmin/internal/admin/events"
	"github.com/avelar/orgadmin/internal/admin/identity"
	"github.com/avelar/orgadmin/internal/admin/models"
)

// MockProducer records produced events instead of talking to Kafka.
type MockProducer struct {
	mu       sync.Mutex
	produced []events.EventType
}

func (m *MockProducer) Produce(eventType events.EventType, _, _ uuid.UUID, _ interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.produced = append(m.produced, eventType)
}

func (m *MockProducer) Count(eventType events.EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.produced {
		if e == eventType {
			n++
		}
	}
	return n
}

// testEnv wires the controller services against an in-memory SQLite
// repository and a mock clock.
type testEnv struct {
	repo        *db.Repository
	producer    *MockProducer
	clock       *clock.Mock
	identity    *identity.Store
	companies   *CompanyService
	departments *DepartmentService
	users       *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, db.Migrate(gdb), "failed to migrate test database")

	repo := db.NewWithDB(gdb)
	producer := &MockProducer{}
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ids := identity.NewStore(repo)
	logger := zaptest.NewLogger(t)

	return &testEnv{
		repo:        repo,
		producer:    producer,
		clock:       clk,
		identity:    ids,
		companies:   NewCompanyService(repo, producer, clk, logger),
		departments: NewDepartmentService(repo, producer, logger),
		users:       NewUserService(repo, ids, producer, logger),
	}
}

// seedUser creates a user with credentials and the given placement,
// bypassing the policy checks; tests use it to set the stage.
func (env *testEnv) seedUser(t *testing.T, name, email, password string, role models.Role, companyID, departmentID *uuid.UUID) *models.User {
	t.Helper()
	ctx := context.Background()

	usr, err := env.identity.SignUp(ctx, name, email, password)
	require.NoError(t, err)
	require.NoError(t, env.repo.AssignUser(ctx, usr.ID, role, companyID, departmentID))

	usr.Role = role
	usr.CompanyID = companyID
	usr.DepartmentID = departmentID
	return usr
}

// seedCompany inserts a company directly.
func (env *testEnv) seedCompany(t *testing.T, name, slugValue string) *models.Company {
	t.Helper()
	company := &models.Company{ID: uuid.New(), Name: name, Slug: slugValue}
	require.NoError(t, env.repo.CreateCompany(context.Background(), company))
	return company
}

// seedDepartment inserts a department directly.
func (env *testEnv) seedDepartment(t *testing.T, name string, companyID uuid.UUID) *models.Department {
	t.Helper()
	dep := &models.Department{ID: uuid.New(), Name: name, CompanyID: companyID}
	require.NoError(t, env.repo.CreateDepartment(context.Background(), dep))
	return dep
}
