package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/models"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

type swapFixture struct {
	users    *memUsers
	swaps    *memSwaps
	notifier *recordingNotifier
	svc      *SwapService
}

func newSwapFixture(users ...models.User) *swapFixture {
	if len(users) == 0 {
		users = []models.User{
			member(aliceID, "Alice", "Guitar"),
			member(bobID, "Bob", "Python"),
			member(carolID, "Carol", "Python", "Cooking"),
		}
	}
	f := &swapFixture{users: newMemUsers(users...), swaps: newMemSwaps(), notifier: &recordingNotifier{}}
	f.svc = NewSwapService(f.swaps, f.users, f.notifier, nil, nil, zap.NewNop())
	f.svc.now = fixedClock
	return f
}

func guitarForPython() dto.CreateSwapRequest {
	return dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "Guitar", RecipientSkill: "Python", Message: "Let's trade"}
}

func assertAppError(t *testing.T, err error, target *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, target), "expected %s, got %v", target.Code, err)
}

func TestSwapServiceCreate(t *testing.T) {
	f := newSwapFixture()

	view, err := f.svc.Create(context.Background(), aliceID, guitarForPython())
	require.NoError(t, err)
	assert.Equal(t, models.SwapPending, view.Status)
	assert.Equal(t, "Alice", view.Requester.Name)
	assert.Equal(t, "Bob", view.Recipient.Name)
	require.NotNil(t, view.IsRequester)
	assert.True(t, *view.IsRequester)
	require.NotNil(t, view.OtherUser)
	assert.Equal(t, bobID, view.OtherUser.ID)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, bobID, sent[0].UserID)
	assert.Equal(t, models.NotificationSwapRequest, sent[0].Type)
	assert.Equal(t, "Alice sent you a swap request.", sent[0].Message)
	require.NotNil(t, sent[0].SwapRequestID)
	assert.Equal(t, view.ID, *sent[0].SwapRequestID)
}

func TestSwapServiceCreateGuards(t *testing.T) {
	private := member(daveID, "Dave", "Python")
	private.IsPublic = false
	banned := member(eveID, "Eve", "Python")
	banned.Banned = true

	cases := []struct {
		name    string
		caller  string
		req     dto.CreateSwapRequest
		want    *appErrors.Error
		message string
	}{
		{name: "missing recipient", caller: aliceID, req: dto.CreateSwapRequest{RequesterSkill: "Guitar", RecipientSkill: "Python"}, want: appErrors.ErrValidation},
		{name: "blank skill", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "   ", RecipientSkill: "Python"}, want: appErrors.ErrValidation},
		{name: "skill too long", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: strings.Repeat("g", 101), RecipientSkill: "Python"}, want: appErrors.ErrValidation},
		{name: "malformed recipient id", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: "bob", RequesterSkill: "Guitar", RecipientSkill: "Python"}, want: appErrors.ErrValidation},
		{name: "unknown recipient", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: nobodyID, RequesterSkill: "Guitar", RecipientSkill: "Python"}, want: appErrors.ErrNotFound, message: "recipient not found"},
		{name: "banned recipient", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: eveID, RequesterSkill: "Guitar", RecipientSkill: "Python"}, want: appErrors.ErrNotFound, message: "recipient not found"},
		{name: "private recipient", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: daveID, RequesterSkill: "Guitar", RecipientSkill: "Python"}, want: appErrors.ErrForbidden, message: "cannot send request to private profile"},
		{name: "self", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: aliceID, RequesterSkill: "Guitar", RecipientSkill: "Guitar"}, want: appErrors.ErrSelfReference, message: "cannot swap with yourself"},
		{name: "requester lacks skill", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "Piano", RecipientSkill: "Python"}, want: appErrors.ErrValidation, message: "you must offer the skill you are proposing"},
		{name: "recipient lacks skill", caller: aliceID, req: dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "Guitar", RecipientSkill: "Rust"}, want: appErrors.ErrValidation, message: "recipient does not offer the requested skill"},
		{name: "banned requester", caller: eveID, req: dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "Python", RecipientSkill: "Python"}, want: appErrors.ErrBannedAccount},
		{name: "deleted requester", caller: "ghost", req: guitarForPython(), want: appErrors.ErrUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSwapFixture(member(aliceID, "Alice", "Guitar"), member(bobID, "Bob", "Python"), private, banned)

			_, err := f.svc.Create(context.Background(), tc.caller, tc.req)
			assertAppError(t, err, tc.want)
			if tc.message != "" {
				assert.Equal(t, tc.message, appErrors.FromError(err).Message)
			}

			mine, _, listErr := f.svc.ListMine(context.Background(), bobID, dto.SwapListQuery{})
			require.NoError(t, listErr)
			assert.Empty(t, mine)
			assert.Empty(t, f.notifier.all())
		})
	}
}

func TestSwapServiceCreateRejectsSecondActiveSwapEitherDirection(t *testing.T) {
	f := newSwapFixture(member(aliceID, "Alice", "Guitar", "Drums"), member(bobID, "Bob", "Python", "Go"), member(carolID, "Carol", "Python"))
	ctx := context.Background()

	_, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, aliceID, dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "Drums", RecipientSkill: "Go"})
	assertAppError(t, err, appErrors.ErrConflict)
	assert.Equal(t, msgActiveSwapExists, appErrors.FromError(err).Message)

	_, err = f.svc.Create(ctx, bobID, dto.CreateSwapRequest{RecipientID: aliceID, RequesterSkill: "Python", RecipientSkill: "Guitar"})
	assertAppError(t, err, appErrors.ErrConflict)

	_, err = f.svc.Create(ctx, carolID, dto.CreateSwapRequest{RecipientID: bobID, RequesterSkill: "Python", RecipientSkill: "Python"})
	require.NoError(t, err)
}

func TestSwapServiceCreateAllowsNewSwapAfterTerminalState(t *testing.T) {
	f := newSwapFixture()
	ctx := context.Background()

	first, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, first.ID, bobID)
	require.NoError(t, err)

	second, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSwapServiceCreateMapsUniqueViolationToConflict(t *testing.T) {
	f := newSwapFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)

	// Hide the existing row from the read-side check so only the index can catch it.
	blind := &blindSwaps{memSwaps: f.swaps}
	f.svc.swaps = blind

	_, err = f.svc.Create(ctx, aliceID, guitarForPython())
	assertAppError(t, err, appErrors.ErrConflict)
}

type blindSwaps struct {
	*memSwaps
}

func (b *blindSwaps) FindActiveBetween(ctx context.Context, a, c string) (*models.SwapRequest, error) {
	return nil, nil
}

func TestSwapServiceConcurrentCreateYieldsOneActiveSwap(t *testing.T) {
	f := newSwapFixture()
	f.svc.swaps = &blindSwaps{memSwaps: f.swaps}
	ctx := context.Background()

	var created, conflicts int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		i := i
		g.Go(func() error {
			req := guitarForPython()
			caller := aliceID
			if i%2 == 1 {
				caller = bobID
				req = dto.CreateSwapRequest{RecipientID: aliceID, RequesterSkill: "Python", RecipientSkill: "Guitar"}
			}
			_, err := f.svc.Create(ctx, caller, req)
			switch {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case appErrors.Is(err, appErrors.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(15), conflicts)
}

func TestSwapServiceHappyPathLifecycle(t *testing.T) {
	f := newSwapFixture()
	ctx := context.Background()

	swap, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)

	accepted, err := f.svc.Accept(ctx, swap.ID, bobID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapAccepted, accepted.Status)
	assert.Nil(t, accepted.CompletedAt)

	sent := f.notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, aliceID, sent[1].UserID)
	assert.Equal(t, models.NotificationSwapAccepted, sent[1].Type)
	assert.Equal(t, "Bob accepted your swap request!", sent[1].Message)

	completed, err := f.svc.Complete(ctx, swap.ID, aliceID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, fixedNow, *completed.CompletedAt)
}

func TestSwapServiceRejectNotifiesRequester(t *testing.T) {
	f := newSwapFixture()
	ctx := context.Background()

	swap, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)
	rejected, err := f.svc.Reject(ctx, swap.ID, bobID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapRejected, rejected.Status)

	sent := f.notifier.all()
	require.Len(t, sent, 2)
	assert.Equal(t, models.NotificationSwapRejected, sent[1].Type)
	assert.Equal(t, "Bob rejected your swap request.", sent[1].Message)
}

func TestSwapServiceOnlyRecipientMayAcceptOrReject(t *testing.T) {
	statuses := []models.SwapStatus{models.SwapPending, models.SwapAccepted, models.SwapRejected, models.SwapCancelled, models.SwapCompleted}
	for _, status := range statuses {
		for _, action := range []models.SwapAction{models.SwapActionAccept, models.SwapActionReject} {
			t.Run(string(action)+"/"+string(status), func(t *testing.T) {
				f := newSwapFixture()
				f.swaps = newMemSwaps(models.SwapRequest{ID: "s1", RequesterID: aliceID, RecipientID: bobID, Status: status})
				f.svc.swaps = f.swaps

				_, err := f.svc.Transition(context.Background(), "s1", aliceID, action, "")
				assertAppError(t, err, appErrors.ErrForbidden)
				_, err = f.svc.Transition(context.Background(), "s1", carolID, action, "")
				assertAppError(t, err, appErrors.ErrForbidden)
				assert.Equal(t, status, f.swaps.status("s1"))
			})
		}
	}
}

func TestSwapServiceTransitionGraph(t *testing.T) {
	statuses := []models.SwapStatus{models.SwapPending, models.SwapAccepted, models.SwapRejected, models.SwapCancelled, models.SwapCompleted}
	allowed := map[models.SwapAction]map[models.SwapStatus]models.SwapStatus{
		models.SwapActionAccept:   {models.SwapPending: models.SwapAccepted},
		models.SwapActionReject:   {models.SwapPending: models.SwapRejected},
		models.SwapActionCancel:   {models.SwapPending: models.SwapCancelled, models.SwapAccepted: models.SwapCancelled},
		models.SwapActionComplete: {models.SwapAccepted: models.SwapCompleted},
	}

	for action, edges := range allowed {
		for _, from := range statuses {
			t.Run(string(action)+"/"+string(from), func(t *testing.T) {
				f := newSwapFixture()
				f.swaps = newMemSwaps(models.SwapRequest{ID: "s1", RequesterID: aliceID, RecipientID: bobID, Status: from})
				f.svc.swaps = f.swaps

				view, err := f.svc.Transition(context.Background(), "s1", bobID, action, "")
				to, ok := edges[from]
				if !ok {
					assertAppError(t, err, appErrors.ErrConflict)
					assert.Equal(t, from, f.swaps.status("s1"))
					return
				}
				require.NoError(t, err)
				assert.Equal(t, to, view.Status)
				assert.Equal(t, to, f.swaps.status("s1"))
			})
		}
	}
}

func TestSwapServiceCompleteOutsideAcceptedLeavesCompletedAtUnset(t *testing.T) {
	for _, status := range []models.SwapStatus{models.SwapPending, models.SwapRejected, models.SwapCancelled} {
		f := newSwapFixture()
		f.swaps = newMemSwaps(models.SwapRequest{ID: "s1", RequesterID: aliceID, RecipientID: bobID, Status: status})
		f.svc.swaps = f.swaps

		_, err := f.svc.Complete(context.Background(), "s1", aliceID)
		assertAppError(t, err, appErrors.ErrConflict)

		stored, getErr := f.swaps.GetByID(context.Background(), "s1")
		require.NoError(t, getErr)
		assert.Nil(t, stored.CompletedAt)
	}
}

func TestSwapServiceCancelRecordsActorAndReason(t *testing.T) {
	f := newSwapFixture()
	ctx := context.Background()
	swap, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, swap.ID, aliceID, strings.Repeat("x", 201))
	assertAppError(t, err, appErrors.ErrValidation)

	cancelled, err := f.svc.Cancel(ctx, swap.ID, aliceID, "  schedule changed ")
	require.NoError(t, err)
	assert.Equal(t, models.SwapCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, aliceID, *cancelled.CancelledBy)
	assert.Equal(t, "schedule changed", cancelled.CancellationReason)
}

func TestSwapServiceTransitionErrors(t *testing.T) {
	f := newSwapFixture()
	f.swaps = newMemSwaps(models.SwapRequest{ID: "s1", RequesterID: aliceID, RecipientID: bobID, Status: models.SwapPending})
	f.svc.swaps = f.swaps
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, "s1", bobID, models.SwapAction("archive"), "")
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.Transition(ctx, "missing", bobID, models.SwapActionAccept, "")
	assertAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Cancel(ctx, "s1", carolID, "")
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestSwapServiceConcurrentTransitionsHaveOneWinner(t *testing.T) {
	f := newSwapFixture()
	f.swaps = newMemSwaps(models.SwapRequest{ID: "s1", RequesterID: aliceID, RecipientID: bobID, Status: models.SwapPending})
	f.svc.swaps = f.swaps
	ctx := context.Background()

	var wins, conflicts int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		i := i
		g.Go(func() error {
			var err error
			if i%2 == 0 {
				_, err = f.svc.Accept(ctx, "s1", bobID)
			} else {
				_, err = f.svc.Cancel(ctx, "s1", aliceID, "")
			}
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case appErrors.Is(err, appErrors.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	// accept then cancel is a legal path, so at most two transitions can land.
	assert.GreaterOrEqual(t, wins, int32(1))
	assert.LessOrEqual(t, wins, int32(2))
	assert.Equal(t, int32(10), wins+conflicts)
	assert.Contains(t, []models.SwapStatus{models.SwapAccepted, models.SwapCancelled}, f.swaps.status("s1"))
}

func TestSwapServiceNotificationFailureDoesNotFailCreate(t *testing.T) {
	f := newSwapFixture()
	f.notifier.err = errors.New("queue full")

	view, err := f.svc.Create(context.Background(), aliceID, guitarForPython())
	require.NoError(t, err)
	assert.Equal(t, models.SwapPending, view.Status)
}

func TestSwapServiceGetAndListMine(t *testing.T) {
	f := newSwapFixture()
	ctx := context.Background()
	created, err := f.svc.Create(ctx, aliceID, guitarForPython())
	require.NoError(t, err)

	view, err := f.svc.Get(ctx, created.ID, bobID)
	require.NoError(t, err)
	require.NotNil(t, view.IsRequester)
	assert.False(t, *view.IsRequester)
	assert.Equal(t, aliceID, view.OtherUser.ID)

	_, err = f.svc.Get(ctx, created.ID, carolID)
	assertAppError(t, err, appErrors.ErrForbidden)

	items, page, err := f.svc.ListMine(ctx, bobID, dto.SwapListQuery{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, models.DefaultPageSize, page.PageSize)

	items, _, err = f.svc.ListMine(ctx, bobID, dto.SwapListQuery{Status: "accepted"})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, _, err = f.svc.ListMine(ctx, bobID, dto.SwapListQuery{Status: "archived"})
	assertAppError(t, err, appErrors.ErrValidation)
}
