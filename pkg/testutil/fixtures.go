package testutil

import (
	"time"

	"github.com/google/uuid"

	id "pollster/pkg/domain"
)

// TestIDs provides deterministic ids for tests.
var TestIDs = struct {
	UserID1 id.UserID
	UserID2 id.UserID
	PollID1 id.PollID
	PollID2 id.PollID
}{
	UserID1: id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	UserID2: id.UserID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	PollID1: id.PollID(uuid.MustParse("bbbb0000-0000-0000-0000-000000000001")),
	PollID2: id.PollID(uuid.MustParse("bbbb0000-0000-0000-0000-000000000002")),
}

// T0 is a fixed reference instant for time-based tests.
var T0 = time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
