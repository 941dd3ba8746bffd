package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mae-kelly/stay-fly/internal/logger"
)

func TestMilestoneJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "milestones.log")
	journal, err := logger.NewSafeFileWriter(path, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	tracker := NewMilestoneTracker(1000, journal)
	tracker.Check(2100)
	tracker.Check(5500)
	require.NoError(t, journal.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2x $2100.00")
	assert.Contains(t, lines[1], "5x $5500.00")
}

func TestMilestoneJournalIsOptional(t *testing.T) {
	tracker := NewMilestoneTracker(1000, nil)
	crossed := tracker.Check(2100)
	require.Len(t, crossed, 1)
	assert.Equal(t, 2.0, crossed[0].Multiple)
}
