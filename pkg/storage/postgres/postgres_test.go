package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jotsrv/jot/pkg/api"
	"github.com/jotsrv/jot/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if a container runtime is not available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("jot_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// makeTestUser inserts a fresh user and returns it.
func makeTestUser(t *testing.T, store *Store, username string) *api.User {
	t.Helper()

	u := &api.User{
		ID:        uuid.NewString(),
		Username:  username,
		Password:  "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgres_UserRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("alice"))

	got, err := store.UserByUsername(ctx, u.Username)
	if err != nil {
		t.Fatalf("UserByUsername failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}
	if got.Password != u.Password {
		t.Errorf("Password = %q, want %q", got.Password, u.Password)
	}
	if !got.Active {
		t.Error("user should be active")
	}

	byID, err := store.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if byID.Username != u.Username {
		t.Errorf("Username = %q, want %q", byID.Username, u.Username)
	}
}

func TestPostgres_DuplicateUsername(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("bob"))

	dup := &api.User{
		ID:        uuid.NewString(),
		Username:  u.Username,
		Password:  u.Password,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_DeactivateUser(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("carol"))

	if err := store.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}
	got, err := store.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if got.Active {
		t.Error("user should be inactive")
	}

	if err := store.SetUserActive(ctx, "no-such-id", false); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_TokenReplace(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("dave"))

	old := &api.Token{Key: uniqueName("key_old"), UserID: u.ID, CreatedAt: time.Now().UTC()}
	if err := store.CreateToken(ctx, old); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	// A second token for the same user violates the user_id constraint.
	second := &api.Token{Key: uniqueName("key_second"), UserID: u.ID, CreatedAt: time.Now().UTC()}
	if err := store.CreateToken(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	fresh := &api.Token{Key: uniqueName("key_new"), UserID: u.ID, CreatedAt: time.Now().UTC()}
	if err := store.ReplaceToken(ctx, u.ID, fresh); err != nil {
		t.Fatalf("ReplaceToken failed: %v", err)
	}

	if _, err := store.TokenByKey(ctx, old.Key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old key should be gone, got %v", err)
	}
	got, err := store.TokenByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("TokenByUser failed: %v", err)
	}
	if got.Key != fresh.Key {
		t.Errorf("Key = %q, want %q", got.Key, fresh.Key)
	}
}

func TestPostgres_NoteAliasConstraint(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("erin"))

	n := &api.Note{
		ID: uuid.NewString(), OwnerID: u.ID, Text: "first",
		Alias: "todo", Active: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	dup := &api.Note{
		ID: uuid.NewString(), OwnerID: u.ID, Text: "second",
		Alias: "todo", Active: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNote(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Soft delete frees the alias.
	if err := store.DeleteNote(ctx, u.ID, n.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if err := store.CreateNote(ctx, dup); err != nil {
		t.Fatalf("CreateNote after delete failed: %v", err)
	}

	// Untagged notes never collide.
	for range 2 {
		plain := &api.Note{
			ID: uuid.NewString(), OwnerID: u.ID, Text: "untagged",
			Active: true, CreatedAt: time.Now().UTC(),
		}
		if err := store.CreateNote(ctx, plain); err != nil {
			t.Fatalf("CreateNote without alias failed: %v", err)
		}
	}
}

func TestPostgres_ListNotesOrderAndLimit(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("frank"))
	base := time.Now().UTC()

	var ids []string
	for i := range 5 {
		n := &api.Note{
			ID: uuid.NewString(), OwnerID: u.ID,
			Text: fmt.Sprintf("note %d", i), Active: true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote %d failed: %v", i, err)
		}
		ids = append(ids, n.ID)
	}

	notes, err := store.ListNotes(ctx, u.ID, 3)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("len(notes) = %d, want 3", len(notes))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if notes[i].ID != want {
			t.Errorf("position %d: ID = %q, want %q", i, notes[i].ID, want)
		}
	}
}

func TestPostgres_NotebookGetOrCreate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("grace"))

	nb1, err := store.NotebookGetOrCreate(ctx, u.ID, "work")
	if err != nil {
		t.Fatalf("NotebookGetOrCreate failed: %v", err)
	}
	nb2, err := store.NotebookGetOrCreate(ctx, u.ID, "work")
	if err != nil {
		t.Fatalf("second NotebookGetOrCreate failed: %v", err)
	}
	if nb1.ID != nb2.ID {
		t.Errorf("notebook IDs differ: %q vs %q", nb1.ID, nb2.ID)
	}

	n := &api.Note{
		ID: uuid.NewString(), OwnerID: u.ID, Text: "in work",
		Notebook: "work", Active: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNote(ctx, n); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	notes, err := store.NotesByNotebook(ctx, u.ID, "work", 0)
	if err != nil {
		t.Fatalf("NotesByNotebook failed: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Errorf("unexpected notebook notes: %+v", notes)
	}

	books, err := store.ListNotebooks(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListNotebooks failed: %v", err)
	}
	if len(books) != 1 || books[0].Name != "work" {
		t.Errorf("unexpected notebooks: %+v", books)
	}
}

func TestPostgres_CreateReport(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Anonymous report with no user link.
	r := &api.Report{
		ID:        uuid.NewString(),
		Traceback: "Traceback (most recent call last): boom",
		Info:      "cli 1.2.3 linux",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateReport(ctx, r); err != nil {
		t.Fatalf("CreateReport failed: %v", err)
	}

	u := makeTestUser(t, store, uniqueName("henry"))
	linked := &api.Report{
		ID:        uuid.NewString(),
		Traceback: "boom again",
		UserID:    u.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateReport(ctx, linked); err != nil {
		t.Fatalf("CreateReport with user failed: %v", err)
	}
}

func TestPostgres_RegistrationQuestionFlow(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	u := makeTestUser(t, store, uniqueName("ivy"))

	q := &api.Question{
		ID:        uuid.NewString(),
		Text:      "What year is it?",
		Answer:    "2026",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateQuestion(ctx, q); err != nil {
		t.Fatalf("CreateQuestion failed: %v", err)
	}

	qs, err := store.ActiveQuestions(ctx)
	if err != nil {
		t.Fatalf("ActiveQuestions failed: %v", err)
	}
	if len(qs) == 0 {
		t.Fatal("expected at least one active question")
	}

	base := time.Now().UTC()
	var latest string
	for i := range 2 {
		rq := &api.RegisterQuestion{
			UUID:       uuid.NewString(),
			QuestionID: q.ID,
			UserID:     u.ID,
			Active:     true,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateRegisterQuestion(ctx, rq); err != nil {
			t.Fatalf("CreateRegisterQuestion %d failed: %v", i, err)
		}
		latest = rq.UUID
	}

	got, err := store.LatestRegisterQuestion(ctx, u.ID)
	if err != nil {
		t.Fatalf("LatestRegisterQuestion failed: %v", err)
	}
	if got.UUID != latest {
		t.Errorf("UUID = %q, want %q", got.UUID, latest)
	}

	rq, question, err := store.RegisterQuestionByUUID(ctx, latest)
	if err != nil {
		t.Fatalf("RegisterQuestionByUUID failed: %v", err)
	}
	if rq.UserID != u.ID || question.Answer != "2026" {
		t.Errorf("unexpected challenge: %+v / %+v", rq, question)
	}

	if err := store.CompleteRegistration(ctx, latest); err != nil {
		t.Fatalf("CompleteRegistration failed: %v", err)
	}
	registered, err := store.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if !registered.Registered {
		t.Error("user should be registered")
	}
	if _, _, err := store.RegisterQuestionByUUID(ctx, latest); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("retired challenge: expected ErrNotFound, got %v", err)
	}
	if err := store.CompleteRegistration(ctx, latest); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second completion: expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
