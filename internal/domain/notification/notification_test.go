package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderPending(t *testing.T) {
	ev := OrderPending("buyer-1", "Practical Go", "DH-123456")

	assert.Equal(t, "buyer-1", ev.RecipientID)
	assert.Equal(t, KindOrderPending, ev.Kind)
	assert.Contains(t, ev.Message, "Practical Go")
	assert.Contains(t, ev.Message, "DH-123456")
	assert.Equal(t, "/order/DH-123456", ev.Link)
}

func TestEnrollmentCompleted(t *testing.T) {
	ev := EnrollmentCompleted("buyer-1", "Practical Go")

	assert.Equal(t, KindEnrollmentCompleted, ev.Kind)
	assert.Contains(t, ev.Message, "Practical Go")
	assert.Equal(t, "/study", ev.Link)
}

func TestOrderCanceled(t *testing.T) {
	ev := OrderCanceled("buyer-1", "Practical Go", "DH-123456")

	assert.Equal(t, KindOrderCanceled, ev.Kind)
	assert.Contains(t, ev.Message, "DH-123456")
	assert.Equal(t, "/order/DH-123456", ev.Link)
}
