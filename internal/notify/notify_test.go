package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/testutil"
)

func TestSendOTP(t *testing.T) {
	t.Parallel()
	pub := &testutil.Publisher{}
	q := NewQueue(pub, "notification_events")

	require.NoError(t, q.SendOTP(context.Background(), "a@shop.test", "123456", "Alice"))

	got := pub.Events("notification_events")
	require.Len(t, got, 1)
	assert.Equal(t, "a@shop.test", got[0].Key)
	assert.Equal(t, KindOTP, got[0].Body["kind"])
	assert.Equal(t, "123456", got[0].Body["code"])
	assert.Equal(t, "Alice", got[0].Body["fullName"])
}

func TestSendOTP_PublishError(t *testing.T) {
	t.Parallel()
	pub := &testutil.Publisher{Err: errors.New("queue full")}
	err := NewQueue(pub, "notification_events").SendOTP(context.Background(), "a@shop.test", "123456", "")
	require.Error(t, err)
}
