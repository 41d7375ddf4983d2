package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripPosition(t *testing.T) {
	at := time.Date(2026, 6, 1, 8, 30, 0, 123, time.UTC)
	token, err := EncodeCursor(Cursor{ID: "1789", CreatedAt: at.Format(time.RFC3339Nano)})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	createdAt, id, err := cursor.Position()
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(at))
	assert.Equal(t, int64(1789), id)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, _, err = Cursor{ID: "x", CreatedAt: "yesterday"}.Position()
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Limit())
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*int{ptr(1), ptr(2), ptr(3)}
	token := func(v *int) string { return string(rune('a' + *v)) }

	info := BuildCursorPageInfo(rows, 2, token)
	assert.True(t, info.HasMore)
	assert.Equal(t, "c", info.NextPageToken)

	info = BuildCursorPageInfo(rows, 3, token)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func ptr(v int) *int { return &v }
