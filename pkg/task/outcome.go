package task

// Kind classifies the terminal result of one item's execution.
type Kind string

const (
	// KindSuccess marks an item whose function returned without error.
	KindSuccess Kind = "success"
	// KindFailed marks an item whose final attempt returned an error.
	KindFailed Kind = "failed"
	// KindCancelled marks an item that never reached a terminal attempt
	// because the manager closed or its context ended first.
	KindCancelled Kind = "cancelled"
)

// Outcome is the terminal classification of one item. Exactly one Outcome is
// produced per submitted item, exactly once.
type Outcome struct {
	// Kind tags the variant.
	Kind Kind

	// Result holds the function's return value for successful items.
	Result any

	// Err holds the final attempt's error for failed items, or the
	// cancellation cause for cancelled ones. Errors from earlier attempts
	// are discarded.
	Err error
}

func success(result any) Outcome {
	return Outcome{Kind: KindSuccess, Result: result}
}

func failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Err: err}
}

func cancelled(err error) Outcome {
	return Outcome{Kind: KindCancelled, Err: err}
}
