package repositories

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectTournamentBaseIsWellFormedSQL(t *testing.T) {
	assert.Regexp(t, `^SELECT\s`, selectTournamentBase)

	// The column list and the FROM clause are joined from separate constants;
	// a missing separator would fuse the last column into the keyword.
	assert.Regexp(t, `created_at\s+FROM\s+tournaments`, selectTournamentBase)
	assert.NotContains(t, selectTournamentBase, "created_atFROM")
}

func TestTournamentColumnsMatchScanArity(t *testing.T) {
	columns := strings.Split(tournamentColumns, ",")
	for i, c := range columns {
		columns[i] = strings.TrimSpace(c)
		require.NotEmpty(t, columns[i])
	}

	// scanTournament reads exactly these ten columns, in this order.
	want := []string{
		"id", "name", "discipline", "organizer_id", "start_time", "max_participants",
		"participants", "bracket", "logo_key", "created_at",
	}
	assert.Equal(t, want, columns)
}
