package domain

import "errors"

var (
	ErrCatalogNotLoaded     = errors.New("item catalog is not loaded")
	ErrItemNotFound         = errors.New("item not found in catalog")
	ErrAlreadyProcessing    = errors.New("item purchase already in progress")
	ErrAlreadyPurchased     = errors.New("item already purchased")
	ErrPurchaseLimitReached = errors.New("item purchase limit reached")
	ErrAuthorizationDenied  = errors.New("platform denied the purchase")
	ErrAuthorizationTimeout = errors.New("timed out waiting for platform authorization")
	ErrGatewayUnavailable   = errors.New("platform gateway is unavailable")
	ErrRewardFailed         = errors.New("reward grant failed")
	ErrStorageUnavailable   = errors.New("history store is unavailable")
)
