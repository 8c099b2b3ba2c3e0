package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/infra/db"
	"github.com/Spok95/bom-tracker/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDecodeDoc(t *testing.T) {
	assert.Equal(t, bom.RawRecord{"Total_Qty": float64(3)}, decodeDoc([]byte(`{"Total_Qty":3}`)))
	assert.Equal(t, bom.RawRecord{}, decodeDoc([]byte(`[1,2]`)))
	assert.Equal(t, bom.RawRecord{}, decodeDoc([]byte(`null`)))
	assert.Equal(t, bom.RawRecord{}, decodeDoc(nil))
}

func TestBuildPatches(t *testing.T) {
	patches, err := buildPatches("bom", remote.Updates{
		"bom/B/Transfer_Status":     "Finished",
		"bom/A/Expected_Completion": nil,
		"bom/A/Status_UpdatedAt":    "2026-10-15T09:00:00.000Z",
		"bom/C/Brand":               "Acme",
	})
	require.NoError(t, err)
	require.Len(t, patches, 3)

	assert.Equal(t, "A", patches[0].id)
	assert.JSONEq(t, `{"Status_UpdatedAt":"2026-10-15T09:00:00.000Z"}`, patches[0].set)
	assert.Equal(t, []string{"Expected_Completion"}, patches[0].remove)

	assert.Equal(t, "B", patches[1].id)
	assert.NotNil(t, patches[1].remove)
	assert.Empty(t, patches[1].remove)
	assert.Equal(t, "C", patches[2].id)
}

func TestBuildPatches_RejectsForeignCollection(t *testing.T) {
	_, err := buildPatches("bom", remote.Updates{"other/A/Brand": "x"})
	assert.ErrorIs(t, err, remote.ErrInvalidPath)
}

// Интеграционный тест: нужен живой Postgres в APP_TEST_POSTGRES_DSN.
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("APP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log := zaptest.NewLogger(t)

	require.NoError(t, db.MigratePostgres(ctx, dsn, log))
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	collection := "it_" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM bom_documents WHERE collection = $1`, collection)
	})

	s := New(pool, collection, log, WithBackoff(50*time.Millisecond, 200*time.Millisecond))
	snaps := make(chan remote.Snapshot, 16)
	unsub, err := s.Subscribe(ctx, func(sn remote.Snapshot) { snaps <- sn }, func(err error) { t.Logf("feed error: %v", err) })
	require.NoError(t, err)
	defer unsub()

	first := <-snaps
	assert.Empty(t, first)

	require.NoError(t, s.WriteFields(ctx, remote.Updates{
		collection + "/PCB-1/Transfer_Status":     "In Progress",
		collection + "/PCB-1/Expected_Completion": "2026-12",
	}))
	require.Eventually(t, func() bool {
		select {
		case sn := <-snaps:
			doc, ok := sn["PCB-1"]
			return ok && doc["Transfer_Status"] == "In Progress"
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, s.WriteFields(ctx, remote.Updates{collection + "/PCB-1/Expected_Completion": nil}))
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	_, has := snap["PCB-1"]["Expected_Completion"]
	assert.False(t, has)
	assert.Equal(t, "In Progress", snap["PCB-1"]["Transfer_Status"])
}
