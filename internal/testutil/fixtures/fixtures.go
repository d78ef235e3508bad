// Package fixtures builds ready-to-use domain entities for tests.
package fixtures

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/autolot/vehicle-exchange-backend/internal/domain/account"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/auction"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/dispute"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/escrow"
	"github.com/autolot/vehicle-exchange-backend/internal/domain/values"
)

// Money builds a USD amount.
func Money(amount float64) values.Money {
	return values.MustNewMoneyFromFloat(amount, values.USD)
}

// Account builds an active account with a unique email.
func Account(role account.Role) *account.Account {
	return account.New(fmt.Sprintf("%s-%s@autolot.test", role, uuid.NewString()[:8]), role)
}

// Auction builds a Pending auction with the given window.
func Auction(t *testing.T, sellerID uuid.UUID, reserve float64, start, end time.Time) *auction.Auction {
	t.Helper()
	a, err := auction.NewAuction(uuid.New(), sellerID, Money(reserve), start, end)
	require.NoError(t, err)
	return a
}

// ActiveAuction builds an auction already in its live window.
func ActiveAuction(t *testing.T, sellerID uuid.UUID, reserve float64, now time.Time) *auction.Auction {
	t.Helper()
	a := Auction(t, sellerID, reserve, now.Add(-time.Minute), now.Add(time.Hour))
	require.NoError(t, a.Activate(now))
	return a
}

// Escrow builds a Pending escrow.
func Escrow(t *testing.T, buyerID, sellerID uuid.UUID, amount float64) *escrow.Escrow {
	t.Helper()
	e, err := escrow.NewEscrow(uuid.New(), uuid.New(), buyerID, sellerID, Money(amount))
	require.NoError(t, err)
	return e
}

// Dispute builds an Open dispute against the escrow.
func Dispute(t *testing.T, escrowID, initiatorID uuid.UUID) *dispute.Dispute {
	t.Helper()
	d, err := dispute.NewDispute(escrowID, initiatorID, "vehicle condition does not match listing")
	require.NoError(t, err)
	return d
}
