package dispute_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/errors"
)

func newVotingDispute(t *testing.T, panel int) (*dispute.Dispute, []uuid.UUID) {
	t.Helper()
	d, err := dispute.NewDispute(uuid.New(), uuid.New(), "vehicle condition not as described")
	require.NoError(t, err)

	arbitrators := make([]uuid.UUID, panel)
	for i := range arbitrators {
		arbitrators[i] = uuid.New()
	}
	require.NoError(t, d.AssignArbitrators(arbitrators, time.Now().UTC()))
	return d, arbitrators
}

func TestNewDispute(t *testing.T) {
	_, err := dispute.NewDispute(uuid.Nil, uuid.New(), "reason")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = dispute.NewDispute(uuid.New(), uuid.New(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	d, err := dispute.NewDispute(uuid.New(), uuid.New(), "odometer discrepancy")
	require.NoError(t, err)
	assert.Equal(t, dispute.StatusOpen, d.Status)
	assert.Nil(t, d.Verdict)
}

func TestDispute_AssignArbitrators(t *testing.T) {
	now := time.Now().UTC()

	t.Run("empty panel rejected", func(t *testing.T) {
		d, err := dispute.NewDispute(uuid.New(), uuid.New(), "reason")
		require.NoError(t, err)
		err = d.AssignArbitrators(nil, now)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("duplicate arbitrator rejected", func(t *testing.T) {
		d, err := dispute.NewDispute(uuid.New(), uuid.New(), "reason")
		require.NoError(t, err)
		id := uuid.New()
		err = d.AssignArbitrators([]uuid.UUID{id, id}, now)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("only from open", func(t *testing.T) {
		d, _ := newVotingDispute(t, 1)
		err := d.AssignArbitrators([]uuid.UUID{uuid.New()}, now)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
	})
}

func TestDispute_CastVote(t *testing.T) {
	now := time.Now().UTC()

	t.Run("unassigned arbitrator rejected", func(t *testing.T) {
		d, _ := newVotingDispute(t, 3)
		_, err := d.CastVote(uuid.New(), dispute.ForPlaintiff, now)
		assert.True(t, errors.IsType(err, errors.ErrorTypeForbidden))
	})

	t.Run("duplicate vote rejected", func(t *testing.T) {
		d, panel := newVotingDispute(t, 3)
		_, err := d.CastVote(panel[0], dispute.ForPlaintiff, now)
		require.NoError(t, err)
		_, err = d.CastVote(panel[0], dispute.ForDefendant, now)
		assert.True(t, errors.HasCode(err, errors.CodeDuplicateVote))
	})

	t.Run("voting before assignment rejected", func(t *testing.T) {
		d, err := dispute.NewDispute(uuid.New(), uuid.New(), "reason")
		require.NoError(t, err)
		_, err = d.CastVote(uuid.New(), dispute.ForPlaintiff, now)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
	})

	t.Run("majority verdict on last vote", func(t *testing.T) {
		d, panel := newVotingDispute(t, 3)

		resolved, err := d.CastVote(panel[0], dispute.ForPlaintiff, now)
		require.NoError(t, err)
		assert.False(t, resolved)
		assert.Nil(t, d.Verdict)

		resolved, err = d.CastVote(panel[1], dispute.ForPlaintiff, now)
		require.NoError(t, err)
		assert.False(t, resolved)

		resolved, err = d.CastVote(panel[2], dispute.ForDefendant, now)
		require.NoError(t, err)
		assert.True(t, resolved, "verdict is computed exactly when the last arbitrator votes")
		assert.Equal(t, dispute.StatusResolved, d.Status)
		require.NotNil(t, d.Verdict)
		assert.Equal(t, dispute.ForPlaintiff, *d.Verdict)
		assert.NotNil(t, d.ResolvedAt)
	})

	t.Run("tie defaults to defendant", func(t *testing.T) {
		d, panel := newVotingDispute(t, 2)

		_, err := d.CastVote(panel[0], dispute.ForPlaintiff, now)
		require.NoError(t, err)
		resolved, err := d.CastVote(panel[1], dispute.ForDefendant, now)
		require.NoError(t, err)
		assert.True(t, resolved)
		require.NotNil(t, d.Verdict)
		assert.Equal(t, dispute.ForDefendant, *d.Verdict)
	})

	t.Run("no votes after resolution", func(t *testing.T) {
		d, panel := newVotingDispute(t, 1)
		_, err := d.CastVote(panel[0], dispute.ForDefendant, now)
		require.NoError(t, err)

		_, err = d.CastVote(panel[0], dispute.ForDefendant, now)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
	})
}
