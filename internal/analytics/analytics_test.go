package analytics

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDisabledTrackerIsNoop(t *testing.T) {
	tr := New("", "", "", true, nil)
	assert.Equal(t, Noop(), tr)
	tr.Track("app_started", nil)
	assert.NoError(t, tr.Close())

	assert.Equal(t, Noop(), New("phc_key", "", "", false, nil))
}

func TestInstallIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(NewInstallID())
	assert.NoError(t, err)
}
