package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomFormatter(t *testing.T) {
	f := &CustomFormatter{SystemName: "timesheet"}
	entry := logrus.NewEntry(logrus.New()).WithField("error", errors.New("boom"))
	entry.Time = time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	entry.Level = logrus.WarnLevel
	entry.Message = "Event ID: TX_ROLLBACK, Description: rolled back"

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "Date: 2024-03-05, Time: 14:30:00, ")
	assert.Contains(t, line, "Event Source: timesheet, ")
	assert.Contains(t, line, "Event Type: WARNING, ")
	assert.Contains(t, line, "Message: Event ID: TX_ROLLBACK, Description: rolled back")
	assert.Contains(t, line, ", error: boom")
	assert.Equal(t, byte('\n'), out[len(out)-1])
}
