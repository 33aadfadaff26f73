package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codraft/internal/bus"
	"codraft/internal/cache"
	"codraft/internal/document/model"
	"codraft/internal/document/repository"
	"codraft/internal/presence"
	"codraft/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

func newService(t *testing.T) (*DocumentService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	svc := NewDocumentService(repository.NewDocumentRepository(db), bus.New(), presence.NewRegistry(), cache.NewNop())
	return svc, mock, func() { db.Close() }
}

func docColumns() []string {
	return []string{"id", "title", "content", "owner_id", "updated_at"}
}

func expectFind(mock sqlmock.Sqlmock, id string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, content, owner_id, updated_at FROM documents WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(rows)
}

func expectReplaceContent(mock sqlmock.Sqlmock, id, content string, rows *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents SET content = $1, updated_at = NOW() WHERE id = $2 RETURNING id, title, content, owner_id, updated_at")).
		WithArgs(content, id).
		WillReturnRows(rows)
}

func TestCreateDocument(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	created := svc.Bus.Subscribe(CreatedTopic)
	defer created.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(sqlmock.AnyArg(), "Notes", "", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	doc, err := svc.CreateDocument("Notes", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Title)
	assert.Equal(t, "", doc.Content, "a new document starts with empty content")
	assert.Equal(t, "u1", doc.OwnerID)
	assert.NotEmpty(t, doc.ID)

	// The exact created record goes out on the global creation feed.
	ev := <-created.C
	assert.Equal(t, doc, ev)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentDefaultsTitle(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(sqlmock.AnyArg(), DefaultTitle, "", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	doc, err := svc.CreateDocument("", "u1")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, doc.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocumentNotFound(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	sub := svc.Bus.Subscribe(UpdatedTopic("ghost"))
	defer sub.Close()

	expectFind(mock, "ghost", sqlmock.NewRows(docColumns()))

	ok, err := svc.UpdateDocument("ghost", "<p>hi</p>", "u1")
	require.NoError(t, err, "a missing document is a boolean failure, not a fault")
	assert.False(t, ok)

	select {
	case ev := <-sub.C:
		t.Fatalf("no event must be published for a rejected update, got %v", ev)
	default:
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDocument(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	sub := svc.Bus.Subscribe(UpdatedTopic("doc-1"))
	defer sub.Close()

	now := time.Now()
	expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", now))
	expectReplaceContent(mock, "doc-1", "<p>hi</p>",
		sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "<p>hi</p>", "u1", now))

	ok, err := svc.UpdateDocument("doc-1", "<p>hi</p>", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ev := <-sub.C
	doc, isDoc := ev.(*model.Document)
	require.True(t, isDoc)
	assert.Equal(t, "<p>hi</p>", doc.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Ownership enforcement on update is a deployment policy, not a hard rule.
// Both configurations are supported.
func TestUpdateDocumentOwnershipPolicy(t *testing.T) {
	t.Run("policy off allows non-owner", func(t *testing.T) {
		svc, mock, cleanup := newService(t)
		defer cleanup()

		now := time.Now()
		expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", now))
		expectReplaceContent(mock, "doc-1", "edit",
			sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "edit", "u1", now))

		ok, err := svc.UpdateDocument("doc-1", "edit", "u2")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("policy on denies non-owner", func(t *testing.T) {
		svc, mock, cleanup := newService(t)
		defer cleanup()
		svc.UpdateRequiresOwner = true

		sub := svc.Bus.Subscribe(UpdatedTopic("doc-1"))
		defer sub.Close()

		expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", time.Now()))

		ok, err := svc.UpdateDocument("doc-1", "edit", "u2")
		require.NoError(t, err)
		assert.False(t, ok)

		select {
		case <-sub.C:
			t.Fatal("denied update must not publish")
		default:
		}
		assert.NoError(t, mock.ExpectationsWereMet(), "denied update must not touch the store")
	})

	t.Run("policy on allows owner", func(t *testing.T) {
		svc, mock, cleanup := newService(t)
		defer cleanup()
		svc.UpdateRequiresOwner = true

		now := time.Now()
		expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", now))
		expectReplaceContent(mock, "doc-1", "edit",
			sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "edit", "u1", now))

		ok, err := svc.UpdateDocument("doc-1", "edit", "u1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPerDocumentPublishOrder(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	sub := svc.Bus.Subscribe(UpdatedTopic("doc-1"))
	defer sub.Close()

	now := time.Now()
	for _, content := range []string{"v1", "v2"} {
		expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", now))
		expectReplaceContent(mock, "doc-1", content,
			sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", content, "u1", now))
	}

	ok, err := svc.UpdateDocument("doc-1", "v1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.UpdateDocument("doc-1", "v2", "u1")
	require.NoError(t, err)
	require.True(t, ok)

	first := (<-sub.C).(*model.Document)
	second := (<-sub.C).(*model.Document)
	assert.Equal(t, "v1", first.Content)
	assert.Equal(t, "v2", second.Content, "a subscriber must observe updates in persist order")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentOwnershipGate(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	// Presence for the document must survive a denied delete.
	svc.Presence.Upsert("doc-1", model.Presence{UserID: "u1", Name: "Ana"})

	expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", time.Now()))

	ok, err := svc.DeleteDocument("doc-1", "u2")
	require.NoError(t, err, "a denied delete is a boolean failure, not a fault")
	assert.False(t, ok)

	assert.Len(t, svc.Presence.Snapshot("doc-1"), 1, "denied delete must have no side effects")
	assert.NoError(t, mock.ExpectationsWereMet(), "denied delete must not issue a DELETE")
}

func TestDeleteDocument(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	svc.Presence.Upsert("doc-1", model.Presence{UserID: "u1"})

	expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := svc.DeleteDocument("doc-1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Empty(t, svc.Presence.Snapshot("doc-1"), "presence state is dropped with the document")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDocumentNotFound(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	expectFind(mock, "ghost", sqlmock.NewRows(docColumns()))

	ok, err := svc.DeleteDocument("ghost", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameDocument(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	sub := svc.Bus.Subscribe(UpdatedTopic("doc-1"))
	defer sub.Close()

	now := time.Now()
	expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", now))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents SET title = $1, updated_at = NOW() WHERE id = $2 RETURNING id, title, content, owner_id, updated_at")).
		WithArgs("Plans", "doc-1").
		WillReturnRows(sqlmock.NewRows(docColumns()).AddRow("doc-1", "Plans", "", "u1", now))

	ok, err := svc.RenameDocument("doc-1", "Plans", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ev := (<-sub.C).(*model.Document)
	assert.Equal(t, "Plans", ev.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameDocumentNonOwner(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "", "u1", time.Now()))

	ok, err := svc.RenameDocument("doc-1", "Plans", "u2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePresence(t *testing.T) {
	svc, _, cleanup := newService(t)
	defer cleanup()

	sub := svc.Bus.Subscribe(PresenceTopic("doc-1"))
	defer sub.Close()

	pos := 5
	ok, err := svc.UpdatePresence("doc-1", "u2", "Bo", "#ff0000", true, &pos)
	require.NoError(t, err)
	assert.True(t, ok, "presence updates always succeed")

	snap := (<-sub.C).(model.PresenceSnapshot)
	assert.Equal(t, "doc-1", snap.DocID)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, model.Presence{UserID: "u2", Name: "Bo", Color: "#ff0000", IsTyping: true, CursorPos: &pos}, snap.Users[0])
}

func TestGetDocumentReadThrough(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	now := time.Now()
	expectFind(mock, "doc-1", sqlmock.NewRows(docColumns()).AddRow("doc-1", "Notes", "x", "u1", now))

	doc, err := svc.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Notes", doc.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The full flow of a collaborative session: create, discover, edit, observe,
// report presence.
func TestEndToEndScenario(t *testing.T) {
	svc, mock, cleanup := newService(t)
	defer cleanup()

	createdFeed := svc.Bus.Subscribe(CreatedTopic)
	defer createdFeed.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(sqlmock.AnyArg(), "Notes", "", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	doc, err := svc.CreateDocument("Notes", "u1")
	require.NoError(t, err)
	assert.Equal(t, "", doc.Content)

	created := (<-createdFeed.C).(*model.Document)
	assert.Equal(t, doc, created, "the creation feed carries the exact created record")

	updateFeed := svc.Bus.Subscribe(UpdatedTopic(doc.ID))
	defer updateFeed.Close()
	presenceFeed := svc.Bus.Subscribe(PresenceTopic(doc.ID))
	defer presenceFeed.Close()

	now := time.Now()
	expectFind(mock, doc.ID, sqlmock.NewRows(docColumns()).AddRow(doc.ID, "Notes", "", "u1", now))
	expectReplaceContent(mock, doc.ID, "<p>hi</p>",
		sqlmock.NewRows(docColumns()).AddRow(doc.ID, "Notes", "<p>hi</p>", "u1", now))

	ok, err := svc.UpdateDocument(doc.ID, "<p>hi</p>", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	updated := (<-updateFeed.C).(*model.Document)
	assert.Equal(t, "<p>hi</p>", updated.Content)

	pos := 5
	ok, err = svc.UpdatePresence(doc.ID, "u2", "Bo", "#ff0000", true, &pos)
	require.NoError(t, err)
	assert.True(t, ok)

	snap := (<-presenceFeed.C).(model.PresenceSnapshot)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "u2", snap.Users[0].UserID)
	assert.Equal(t, "Bo", snap.Users[0].Name)
	assert.Equal(t, "#ff0000", snap.Users[0].Color)
	assert.True(t, snap.Users[0].IsTyping)
	require.NotNil(t, snap.Users[0].CursorPos)
	assert.Equal(t, 5, *snap.Users[0].CursorPos)

	assert.NoError(t, mock.ExpectationsWereMet())
}
