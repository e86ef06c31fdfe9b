package intents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusFailed},
		{StatusPending, StatusCancelled},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusCancelled},
		{StatusCompleted, StatusRefunded},
		{StatusCompleted, StatusPartiallyRefunded},
		{StatusPartiallyRefunded, StatusRefunded},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s should be allowed", tr[0], tr[1])
	}

	denied := [][2]string{
		{StatusPending, StatusCompleted}, // must pass through processing
		{StatusPending, StatusRefunded},
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusCancelled},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusCompleted},
		{StatusCancelled, StatusProcessing},
		{StatusRefunded, StatusCompleted},
		{StatusRefunded, StatusPartiallyRefunded},
		{StatusPartiallyRefunded, StatusCompleted},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s should be denied", tr[0], tr[1])
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusFailed))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusRefunded))

	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusProcessing))
	assert.False(t, IsTerminal(StatusCompleted))          // refundable
	assert.False(t, IsTerminal(StatusPartiallyRefunded)) // refundable
}

func TestValidMethod(t *testing.T) {
	for _, m := range []string{MethodCard, MethodClick, MethodOson, MethodCashOnDelivery, MethodBankTransfer} {
		assert.True(t, ValidMethod(m))
	}
	assert.False(t, ValidMethod("paypal"))
	assert.False(t, ValidMethod(""))
}

func TestOfflineMethod(t *testing.T) {
	assert.True(t, OfflineMethod(MethodCashOnDelivery))
	assert.True(t, OfflineMethod(MethodBankTransfer))
	assert.False(t, OfflineMethod(MethodClick))
	assert.False(t, OfflineMethod(MethodCard))
}
