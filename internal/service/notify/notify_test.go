package notify

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vtumart/internal/logger"
	"github.com/nkiryanov/vtumart/internal/models"
)

func TestChannelDispatcher(t *testing.T) {
	t.Run("delivers events in order", func(t *testing.T) {
		d := NewChannelDispatcher(10, logger.NewNoOpLogger())

		userID := uuid.New()
		purchase := models.Purchase{Ref: "VTU-X", UserID: userID, Status: models.PurchaseSuccess}
		wallet := models.Wallet{UserID: userID, Main: decimal.NewFromInt(400)}
		boom := errors.New("provider down")

		d.PurchaseResolved(purchase)
		d.BalanceChanged(userID, wallet)
		d.PollFailed(boom)

		e := <-d.Events()
		require.Equal(t, EventPurchase, e.Type)
		require.Equal(t, "VTU-X", e.Purchase.Ref)
		require.Equal(t, userID, e.UserID)

		e = <-d.Events()
		require.Equal(t, EventBalance, e.Type)
		require.True(t, e.Wallet.Main.Equal(decimal.NewFromInt(400)))

		e = <-d.Events()
		require.Equal(t, EventPollErr, e.Type)
		require.ErrorIs(t, e.Err, boom)
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		d := NewChannelDispatcher(1, logger.NewNoOpLogger())

		d.PurchaseResolved(models.Purchase{Ref: "VTU-1"})

		done := make(chan struct{})
		go func() {
			defer close(done)
			// Buffer is full, this must return immediately
			d.PurchaseResolved(models.Purchase{Ref: "VTU-2"})
		}()
		<-done

		e := <-d.Events()
		require.Equal(t, "VTU-1", e.Purchase.Ref)
		select {
		case e := <-d.Events():
			t.Fatalf("dropped event %q was delivered", e.Purchase.Ref)
		default:
		}
	})
}
