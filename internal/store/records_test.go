package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_AssignsIncreasingIDs(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()

	var last int64
	for i, name := range []string{"a", "b", "a", "  padded  ", "\u00fcn\u00efc\u00f6d\u00e9"} {
		before, err := h.List(ctx)
		require.NoError(t, err)

		rec := mustCreate(t, h, name)
		assert.Greater(t, rec.ID, last, "id must increase (step %d)", i)
		last = rec.ID

		after, err := h.List(ctx)
		require.NoError(t, err)
		require.Len(t, after, len(before)+1)
		assert.Equal(t, rec, after[len(after)-1])
	}
}

func TestCreate_BlankIsNoop(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()
	mustCreate(t, h, "existing")

	for _, name := range []string{"", "   ", "\t\n", " "} {
		rec, ok, err := h.Create(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok, "Create(%q) should be a no-op", name)
		assert.Equal(t, Record{}, rec)
	}

	records, err := h.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCreate_StoresNameExactly(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()

	names := []string{"  milk ", "Cafe\u0301", "Caf\u00e9", "tab\there"}
	var created []Record
	for _, name := range names {
		rec := mustCreate(t, h, name)
		assert.Equal(t, name, rec.Name)
		created = append(created, rec)
	}

	records, err := h.List(ctx)
	require.NoError(t, err)
	require.Equal(t, created, records)
	for i, rec := range records {
		assert.Equal(t, []byte(names[i]), []byte(rec.Name), "bytes differ for %q", names[i])
	}
}

func TestUpdate_StoresNameExactly(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()
	rec := mustCreate(t, h, "old")

	changed, err := h.Update(ctx, rec.ID, " e\u0301 ")
	require.NoError(t, err)
	require.True(t, changed)

	records, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: rec.ID, Name: " e\u0301 "}}, records)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")

	records, err := h.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestUpdate_MissingIDChangesNothing(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()
	rec := mustCreate(t, h, "keep")

	changed, err := h.Update(ctx, rec.ID+100, "other")
	require.NoError(t, err)
	assert.False(t, changed)

	records, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{rec}, records)
}

func TestUpdate_BlankIsNoop(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()
	rec := mustCreate(t, h, "keep")

	changed, err := h.Update(ctx, rec.ID, "  ")
	require.NoError(t, err)
	assert.False(t, changed)

	records, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{rec}, records)
}

func TestUpdate_MatchesIDNotName(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()
	first := mustCreate(t, h, "same")
	second := mustCreate(t, h, "same")

	changed, err := h.Update(ctx, second.ID, "different")
	require.NoError(t, err)
	assert.True(t, changed)

	records, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{first, {ID: second.ID, Name: "different"}}, records)
}

func TestDelete_IDNeverReused(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()
	mustCreate(t, h, "a")
	last := mustCreate(t, h, "b")

	removed, err := h.Delete(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = h.Delete(ctx, last.ID)
	require.NoError(t, err)
	assert.False(t, removed, "second delete should report nothing removed")

	records, err := h.List(ctx)
	require.NoError(t, err)
	for _, rec := range records {
		assert.NotEqual(t, last.ID, rec.ID)
	}

	next := mustCreate(t, h, "c")
	assert.Greater(t, next.ID, last.ID, "AUTOINCREMENT must not reuse deleted ids")
}

func TestScenario_BasicCRUD(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	ctx := context.Background()

	mustCreate(t, h, "Buy milk")
	mustCreate(t, h, "Call Bob")

	records, err := h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{1, "Buy milk"}, {2, "Call Bob"}}, records)

	changed, err := h.Update(ctx, 1, "Buy bread")
	require.NoError(t, err)
	require.True(t, changed)

	records, err = h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{1, "Buy bread"}, {2, "Call Bob"}}, records)

	removed, err := h.Delete(ctx, 2)
	require.NoError(t, err)
	require.True(t, removed)

	records, err = h.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{1, "Buy bread"}}, records)
}

func TestList_ToleratesNullNames(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")
	_, err := h.file.db.Exec(`INSERT INTO names (name) VALUES (NULL)`)
	require.NoError(t, err)

	records, err := h.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: 1, Name: ""}}, records)
}

func TestConcurrentCreates_SharedFile(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	const workers, perWorker = 8, 25
	handles := make([]*Handle, workers)
	for i := range handles {
		handles[i] = openTestHandle(t, s, "t.db")
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *Handle) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, _, err := h.Create(ctx, fmt.Sprintf("w%d-%d", i, j)); err != nil {
					errs <- err
				}
			}
		}(i, h)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent create: %v", err)
	}

	records, err := handles[0].List(ctx)
	require.NoError(t, err)
	require.Len(t, records, workers*perWorker)

	seen := make(map[int64]bool, len(records))
	for i, rec := range records {
		assert.False(t, seen[rec.ID], "duplicate id %d", rec.ID)
		seen[rec.ID] = true
		if i > 0 {
			assert.Greater(t, rec.ID, records[i-1].ID)
		}
	}
}

func TestSequentialCreates_FollowIssueOrder(t *testing.T) {
	h := openTestHandle(t, createTestStore(t), "t.db")

	a := mustCreate(t, h, "A")
	b := mustCreate(t, h, "B")
	c := mustCreate(t, h, "C")

	assert.Less(t, a.ID, b.ID)
	assert.Less(t, b.ID, c.ID)
}
