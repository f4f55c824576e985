package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/core/domain"
)

func TestEngine_Purchase_Success(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: 5 * time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("HasHistory", mock.Anything, 10000).Return(false, nil)
	rewards.On("GrantRewards", mock.Anything, testItems()[10000].Rewards).Return(nil)

	var saved domain.PurchaseRecord
	history.On("SaveHistory", mock.Anything, 10000, mock.AnythingOfType("domain.PurchaseRecord")).
		Run(func(args mock.Arguments) {
			saved = args.Get(2).(domain.PurchaseRecord)
		}).
		Return(nil)

	events, cancel := e.Subscribe()
	defer cancel()

	ok, err := e.Purchase(context.Background(), 10000)

	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StateCompleted, e.CurrentState())

	assert.Equal(t, 10000, saved.ItemID)
	assert.NotEmpty(t, saved.TransactionID)
	assert.Equal(t, testItems()[10000].Rewards, saved.Rewards)

	completion := waitForCompletion(t, events)
	assert.True(t, completion.Success)
	assert.Equal(t, 10000, completion.ItemID)
	assert.Equal(t, saved.TransactionID, completion.TransactionID)

	history.AssertExpectations(t)
	rewards.AssertExpectations(t)
}

func TestEngine_Purchase_Denied(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "deny", delay: 5 * time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("HasHistory", mock.Anything, 10000).Return(false, nil)

	events, cancel := e.Subscribe()
	defer cancel()

	ok, err := e.Purchase(context.Background(), 10000)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)
	assert.Equal(t, domain.StateFailed, e.CurrentState())

	// No reward grant and no history write on a denied purchase.
	rewards.AssertNotCalled(t, "GrantRewards", mock.Anything, mock.Anything)
	history.AssertNotCalled(t, "SaveHistory", mock.Anything, mock.Anything, mock.Anything)

	completion := waitForCompletion(t, events)
	assert.False(t, completion.Success)

	// The item is not stuck in the in-flight registry.
	assert.True(t, e.CanPurchase(context.Background(), 10000))
}

func TestEngine_Purchase_UnknownItem(t *testing.T) {
	history := new(MockHistory)
	gw := &fakeGateway{decision: "authorize"}
	e := newTestEngine(t, history, new(MockRewards), gw, time.Second)

	ok, err := e.Purchase(context.Background(), 10001+12345)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Zero(t, gw.startCount(), "no platform attempt for an unknown item")
	history.AssertNotCalled(t, "HasHistory", mock.Anything, mock.Anything)
}

func TestEngine_Purchase_CatalogNotLoaded(t *testing.T) {
	e := NewEngine(new(MockCatalog), new(MockHistory), new(MockRewards), &fakeGateway{}, nil, testLogger(), 0)

	ok, err := e.Purchase(context.Background(), 10000)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrCatalogNotLoaded)
}

func TestEngine_Purchase_DuplicatePolicy(t *testing.T) {
	history := new(MockHistory)
	gw := &fakeGateway{decision: "authorize"}
	e := newTestEngine(t, history, new(MockRewards), gw, time.Second)

	history.On("HasHistory", mock.Anything, 10000).Return(true, nil)

	ok, err := e.Purchase(context.Background(), 10000)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrAlreadyPurchased)
	assert.Zero(t, gw.startCount(), "no platform attempt for an owned item")
}

func TestEngine_Purchase_RepeatableProducesDistinctTransactions(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(nil)

	var transactionIDs []string
	history.On("SaveHistory", mock.Anything, 10001, mock.AnythingOfType("domain.PurchaseRecord")).
		Run(func(args mock.Arguments) {
			transactionIDs = append(transactionIDs, args.Get(2).(domain.PurchaseRecord).TransactionID)
		}).
		Return(nil)

	for range 3 {
		ok, err := e.Purchase(context.Background(), 10001)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.Len(t, transactionIDs, 3)
	assert.NotEqual(t, transactionIDs[0], transactionIDs[1])
	assert.NotEqual(t, transactionIDs[1], transactionIDs[2])
	assert.NotEqual(t, transactionIDs[0], transactionIDs[2])
}

func TestEngine_Purchase_LimitReached(t *testing.T) {
	history := new(MockHistory)
	gw := &fakeGateway{decision: "authorize"}
	e := newTestEngine(t, history, new(MockRewards), gw, time.Second)

	history.On("CountHistory", mock.Anything, 10002).Return(2, nil)

	ok, err := e.Purchase(context.Background(), 10002)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrPurchaseLimitReached)
	assert.Zero(t, gw.startCount())
}

func TestEngine_Purchase_UnderLimitProceeds(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("CountHistory", mock.Anything, 10002).Return(1, nil)
	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(nil)
	history.On("SaveHistory", mock.Anything, 10002, mock.Anything).Return(nil)

	ok, err := e.Purchase(context.Background(), 10002)

	assert.NoError(t, err)
	assert.True(t, ok)
	history.AssertExpectations(t)
}

func TestEngine_Purchase_NoRewardsStillRecordsHistory(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("HasHistory", mock.Anything, 10003).Return(false, nil)
	history.On("SaveHistory", mock.Anything, 10003, mock.Anything).Return(nil)

	ok, err := e.Purchase(context.Background(), 10003)

	assert.NoError(t, err)
	assert.True(t, ok)
	rewards.AssertNotCalled(t, "GrantRewards", mock.Anything, mock.Anything)
	history.AssertExpectations(t)
}

func TestEngine_Purchase_RewardFailure(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("HasHistory", mock.Anything, 10000).Return(false, nil)
	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(errors.New("inventory service down"))

	ok, err := e.Purchase(context.Background(), 10000)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrRewardFailed)
	assert.Equal(t, domain.StateFailed, e.CurrentState())
	// No history entry for a purchase whose rewards were never granted.
	history.AssertNotCalled(t, "SaveHistory", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_Purchase_PersistFailure(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("HasHistory", mock.Anything, 10000).Return(false, nil)
	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(nil)
	history.On("SaveHistory", mock.Anything, 10000, mock.Anything).Return(errors.New("db down"))

	ok, err := e.Purchase(context.Background(), 10000)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, domain.StateFailed, e.CurrentState())
}

func TestEngine_Purchase_GatewayStartFailure(t *testing.T) {
	history := new(MockHistory)
	gw := &fakeGateway{decision: "fail"}
	e := newTestEngine(t, history, new(MockRewards), gw, time.Second)

	history.On("HasHistory", mock.Anything, 10000).Return(false, nil)

	ok, err := e.Purchase(context.Background(), 10000)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	// The registry must not leak the failed attempt.
	assert.True(t, e.CanPurchase(context.Background(), 10000))
}

func TestEngine_Purchase_Timeout(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "silent"}
	e := newTestEngine(t, history, rewards, gw, 30*time.Millisecond)

	history.On("HasHistory", mock.Anything, 10000).Return(false, nil)

	start := time.Now()
	ok, err := e.Purchase(context.Background(), 10000)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrAuthorizationTimeout)
	assert.Less(t, elapsed, time.Second, "timeout should fire close to the configured bound")

	// A late decision is discarded, not delivered to anyone.
	assert.False(t, e.ResolveAuthorization(10000, true))

	// The item can reach the reservation step again afterwards.
	gw.setDecision("authorize")
	gw.mu.Lock()
	gw.delay = time.Millisecond
	gw.mu.Unlock()
	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(nil)
	history.On("SaveHistory", mock.Anything, 10000, mock.Anything).Return(nil)

	ok, err = e.Purchase(context.Background(), 10000)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, gw.startCount())
}

func TestEngine_Purchase_ConcurrentSameItemRejected(t *testing.T) {
	history := new(MockHistory)
	gw := &fakeGateway{decision: "silent"}
	e := newTestEngine(t, history, new(MockRewards), gw, 200*time.Millisecond)

	firstDone := make(chan error, 1)
	go func() {
		_, err := e.Purchase(context.Background(), 10001)
		firstDone <- err
	}()

	// Wait until the first attempt holds the reservation.
	require.Eventually(t, func() bool {
		return !e.CanPurchase(context.Background(), 10001)
	}, time.Second, 2*time.Millisecond)

	ok, err := e.Purchase(context.Background(), 10001)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	// The loser's rejection left the winner's reservation intact.
	assert.False(t, e.CanPurchase(context.Background(), 10001))

	assert.ErrorIs(t, <-firstDone, domain.ErrAuthorizationTimeout)
	assert.True(t, e.CanPurchase(context.Background(), 10001))
}

func TestEngine_Purchase_ConcurrentDifferentItemsProceed(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: 10 * time.Millisecond}
	e := newTestEngine(t, history, rewards, gw, time.Second)

	history.On("HasHistory", mock.Anything, mock.Anything).Return(false, nil)
	history.On("CountHistory", mock.Anything, mock.Anything).Return(0, nil)
	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(nil)
	history.On("SaveHistory", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ids := []int{10000, 10001, 10002, 10003}
	results := make(chan error, len(ids))
	for _, id := range ids {
		go func(id int) {
			_, err := e.Purchase(context.Background(), id)
			results <- err
		}(id)
	}

	for range ids {
		assert.NoError(t, <-results)
	}
}

func TestEngine_Purchase_PublishesCompletionEvent(t *testing.T) {
	history := new(MockHistory)
	rewards := new(MockRewards)
	gw := &fakeGateway{decision: "authorize", delay: time.Millisecond}

	catalog := new(MockCatalog)
	catalog.On("LoadItems", mock.Anything).Return(testItems(), nil).Once()
	publisher := new(MockPublisher)
	publisher.On("PublishPurchaseCompleted", mock.Anything, mock.MatchedBy(func(ev domain.PurchaseCompletion) bool {
		return ev.ItemID == 10001 && ev.Success && ev.TransactionID != ""
	})).Return(nil)

	e := NewEngine(catalog, history, rewards, gw, publisher, testLogger(), time.Second)
	gw.mu.Lock()
	gw.engine = e
	gw.mu.Unlock()
	_, err := e.LoadCatalog(context.Background())
	require.NoError(t, err)

	rewards.On("GrantRewards", mock.Anything, mock.Anything).Return(nil)
	history.On("SaveHistory", mock.Anything, 10001, mock.Anything).Return(nil)

	ok, err := e.Purchase(context.Background(), 10001)
	assert.NoError(t, err)
	assert.True(t, ok)
	publisher.AssertExpectations(t)
}

// waitForCompletion drains the event stream until the first purchase
// completion shows up.
func waitForCompletion(t *testing.T, events <-chan domain.EngineEvent) domain.PurchaseCompletion {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == domain.EventPurchaseCompleted {
				return *ev.Completion
			}
		case <-timeout:
			t.Fatal("no purchase completion event received")
			return domain.PurchaseCompletion{}
		}
	}
}
