package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLibraryStatusRoundTrip(t *testing.T) {
	for _, status := range LibraryStatuses() {
		got, err := ParseLibraryStatus(status.String())
		require.NoError(t, err)
		require.Equal(t, status, got)
	}
	_, err := ParseLibraryStatus("playing")
	require.EqualError(t, err, `invalid library status "playing"`)
	require.False(t, LibraryStatus("").IsValid())
}

func TestListsAreCopies(t *testing.T) {
	statuses := PaymentStatuses()
	statuses[0] = "settled"
	require.Equal(t, PaymentStatusPending, PaymentStatuses()[0])
}

func TestUserRoleAndPaymentStatus(t *testing.T) {
	require.True(t, UserRoleAdmin.IsValid())
	require.True(t, UserRoleCustomer.IsValid())
	_, err := ParseUserRole("vendor")
	require.Error(t, err)

	status, err := ParsePaymentStatus("refunded")
	require.NoError(t, err)
	require.Equal(t, PaymentStatusRefunded, status)
	require.False(t, PaymentStatus("settled").IsValid())
	_, err = ParsePaymentStatus("Completed")
	require.Error(t, err, "matching is case sensitive")
}

func TestOutboxEnums(t *testing.T) {
	eventType, err := ParseOutboxEventType("purchase_completed")
	require.NoError(t, err)
	require.Equal(t, EventPurchaseCompleted, eventType)

	_, err = ParseOutboxAggregateType("vendor_order")
	require.Error(t, err)
	require.True(t, AggregateReview.IsValid())

	require.True(t, OutboxDLQReasonMaxAttempts.IsValid())
	require.False(t, OutboxDLQErrorReason("timeout").IsValid())
}
