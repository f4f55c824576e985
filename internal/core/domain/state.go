package domain

// PaymentState is the engine's coarse, process-wide progress signal. It
// reflects the last transition of any purchase attempt, not a per-item
// status; callers correlate outcomes with items via PurchaseCompletion
// events instead.
type PaymentState string

const (
	StateIdle              PaymentState = "IDLE"
	StateLoadingItemData   PaymentState = "LOADING_ITEM_DATA"
	StateProcessingPayment PaymentState = "PROCESSING_PAYMENT"
	StateProcessingReward  PaymentState = "PROCESSING_REWARD"
	StateCompleted         PaymentState = "COMPLETED"
	StateFailed            PaymentState = "FAILED"
)
