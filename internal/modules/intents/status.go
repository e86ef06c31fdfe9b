package intents

// transitions defines the only legal status edges. Terminal states other
// than the refund edges have no outgoing entries.
var transitions = map[string][]string{
	StatusPending:           {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing:        {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:         {StatusRefunded, StatusPartiallyRefunded},
	StatusPartiallyRefunded: {StatusRefunded},
	StatusFailed:            nil,
	StatusCancelled:         nil,
	StatusRefunded:          nil,
}

func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing edges at all.
// Completed and partially refunded still have refund edges, so they are
// retained but not terminal in this sense.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

func ValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

func ValidMethod(method string) bool {
	switch method {
	case MethodCard, MethodClick, MethodOson, MethodCashOnDelivery, MethodBankTransfer:
		return true
	}
	return false
}

// OfflineMethod reports whether the method settles outside any provider.
func OfflineMethod(method string) bool {
	return method == MethodCashOnDelivery || method == MethodBankTransfer
}
