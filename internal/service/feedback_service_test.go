package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-portal/feedback-service/internal/cache"
	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/events"
	"github.com/feedback-portal/feedback-service/internal/observability"
	"github.com/feedback-portal/feedback-service/internal/repository"
	"github.com/feedback-portal/feedback-service/internal/workflow"
	apperrors "github.com/feedback-portal/feedback-service/pkg/util/errorutil"
)

type stubFeedbackStore struct {
	mu        sync.Mutex
	items     map[string]*domain.Feedback
	history   []domain.FeedbackHistory
	writes    int
	updateErr error
	reviewErr error
	listErr   error
}

func newStubFeedbackStore(items ...domain.Feedback) *stubFeedbackStore {
	s := &stubFeedbackStore{items: map[string]*domain.Feedback{}}
	for i := range items {
		item := items[i]
		s.items[item.ID] = &item
	}
	return s
}

func (s *stubFeedbackStore) GetByID(_ context.Context, id string) (*domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	copied := *item
	copied.WorkflowStatus = workflow.Normalize(copied.WorkflowStatus)
	return &copied, nil
}

func (s *stubFeedbackStore) UpdateWorkflowStatus(_ context.Context, update workflow.StatusUpdate) (*workflow.StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	item, ok := s.items[update.FeedbackID]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	if workflow.Normalize(item.WorkflowStatus) != update.From {
		return nil, workflow.ErrStaleState
	}
	item.WorkflowStatus = update.To
	if update.AssigneeID != nil {
		item.AssignedTo = update.AssigneeID
	}
	item.UpdatedAt = time.Now()
	s.writes++
	s.history = append(s.history, domain.FeedbackHistory{FeedbackID: item.ID, ChangeType: domain.ChangeTypeWorkflow})
	return &workflow.StatusResult{FeedbackID: item.ID, WorkflowStatus: item.WorkflowStatus, AssignedTo: item.AssignedTo, UpdatedAt: item.UpdatedAt}, nil
}

func (s *stubFeedbackStore) List(_ context.Context, filter repository.FeedbackFilter) ([]domain.Feedback, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Feedback
	for _, item := range s.items {
		if filter.WorkflowStatus != nil && workflow.Normalize(item.WorkflowStatus) != *filter.WorkflowStatus {
			continue
		}
		copied := *item
		copied.WorkflowStatus = workflow.Normalize(copied.WorkflowStatus)
		out = append(out, copied)
	}
	return out, len(out), nil
}

func (s *stubFeedbackStore) UpdateReviewStatus(_ context.Context, update repository.ReviewUpdate) (*domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	item, ok := s.items[update.FeedbackID]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	item.ReviewStatus = update.Status
	item.Reviewed = true
	item.ReviewedBy = &update.ReviewerID
	s.writes++
	copied := *item
	return &copied, nil
}

func (s *stubFeedbackStore) ListHistory(_ context.Context, id string) ([]domain.FeedbackHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FeedbackHistory
	for _, h := range s.history {
		if h.FeedbackID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *stubFeedbackStore) DistinctBranchCodes(context.Context) ([]string, error) {
	return []string{"RO-101", "RO-202"}, nil
}

type stubOfficers struct {
	users map[string][]domain.User
	calls int
}

func (s *stubOfficers) ListFieldOfficers(_ context.Context, branchCode string) ([]domain.User, error) {
	s.calls++
	return s.users[branchCode], nil
}

type failingCache struct{}

func (failingCache) Officers(context.Context, string) ([]domain.Officer, error) {
	return nil, errors.New("redis down")
}
func (failingCache) SetOfficers(context.Context, string, []domain.Officer) error {
	return errors.New("redis down")
}
func (failingCache) FilterOptions(context.Context) (*domain.FilterOptions, error) {
	return nil, errors.New("redis down")
}
func (failingCache) SetFilterOptions(context.Context, *domain.FilterOptions) error {
	return errors.New("redis down")
}

func newFeedbackServiceForTest(store *stubFeedbackStore, officers *stubOfficers, c directoryCache, dispatcher events.Dispatcher) *FeedbackService {
	if officers == nil {
		officers = &stubOfficers{users: map[string][]domain.User{
			"RO-101": {{ID: "fo-1", Username: "asha", FullName: "Asha K", Role: domain.RoleFO, BranchCode: "RO-101", Active: true}},
		}}
	}
	if c == nil {
		c = cache.NewStore(nil)
	}
	return NewFeedbackService(FeedbackDependencies{
		Store:      store,
		Officers:   officers,
		Cache:      c,
		Dispatcher: dispatcher,
	}, nil, nil)
}

func domainCode(t *testing.T, err error) (string, int) {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	return de.Code, de.HTTPStatus
}

func TestListAttachesAffordancesPerRole(t *testing.T) {
	store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101", ReviewStatus: domain.ReviewNotVerified})
	svc := newFeedbackServiceForTest(store, nil, nil, nil)

	views, page, err := svc.List(context.Background(), domain.RoleRO, ListFeedbackRequest{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.WorkflowPending, views[0].Feedback.WorkflowStatus)
	require.NotNil(t, views[0].Actions.Workflow)
	assert.Equal(t, workflow.ActionEscalate, views[0].Actions.Workflow.Action)
	assert.False(t, views[0].Actions.Review)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Total: 1, TotalPages: 1}, page)

	views, _, err = svc.List(context.Background(), domain.RoleSuperuser, ListFeedbackRequest{})
	require.NoError(t, err)
	assert.Nil(t, views[0].Actions.Workflow)
	assert.True(t, views[0].Actions.Review)
}

func TestListRejectsUnknownReviewFilter(t *testing.T) {
	svc := newFeedbackServiceForTest(newStubFeedbackStore(), nil, nil, nil)
	_, _, err := svc.List(context.Background(), domain.RoleDO, ListFeedbackRequest{ReviewStatus: "Maybe"})
	code, status := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateWorkflowStatusEscalatePublishesEvent(t *testing.T) {
	store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101"})
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	dispatcher.Subscribe(events.EventFeedbackWorkflowChanged, func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	})
	svc := newFeedbackServiceForTest(store, nil, nil, dispatcher)

	res, err := svc.UpdateWorkflowStatus(context.Background(), Actor{ID: "ro-1", Role: domain.RoleRO}, "fb-1",
		UpdateWorkflowRequest{Status: "Escalated", Comments: "  needs DO  "})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowEscalated, res.Status)
	assert.Equal(t, domain.WorkflowPending, res.From)
	assert.Equal(t, workflow.ActionEscalate, res.Action)

	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.WorkflowChangedPayload)
	require.True(t, ok)
	assert.Equal(t, "needs DO", payload.Comment)
	assert.Equal(t, "ro-1", published[0].Actor.UserID)
}

func TestUpdateWorkflowStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.WorkflowStatus
		actor      Actor
		req        UpdateWorkflowRequest
		storeErr   error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "unknown target",
			actor:      Actor{ID: "ro-1", Role: domain.RoleRO},
			req:        UpdateWorkflowRequest{Status: "Archived"},
			wantCode:   "VALIDATION_FAILED",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong role",
			actor:      Actor{ID: "fo-1", Role: domain.RoleFO},
			req:        UpdateWorkflowRequest{Status: "Escalated"},
			wantCode:   "INVALID_TRANSITION",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "skip ahead",
			actor:      Actor{ID: "do-1", Role: domain.RoleDO},
			req:        UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "fo-1"},
			wantCode:   "INVALID_TRANSITION",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing assignee",
			status:     domain.WorkflowEscalated,
			actor:      Actor{ID: "do-1", Role: domain.RoleDO},
			req:        UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "   "},
			wantCode:   "MISSING_ASSIGNEE",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ineligible assignee",
			status:     domain.WorkflowEscalated,
			actor:      Actor{ID: "do-1", Role: domain.RoleDO},
			req:        UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "fo-elsewhere"},
			wantCode:   "ASSIGNEE_NOT_ELIGIBLE",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "assign resolved ticket to outsider",
			status:     domain.WorkflowResolved,
			actor:      Actor{ID: "do-1", Role: domain.RoleDO},
			req:        UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "fo-elsewhere"},
			wantCode:   "INVALID_TRANSITION",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "assign closed ticket to outsider",
			status:     domain.WorkflowClosed,
			actor:      Actor{ID: "do-1", Role: domain.RoleDO},
			req:        UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "fo-elsewhere"},
			wantCode:   "INVALID_TRANSITION",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "assign pending ticket to outsider",
			actor:      Actor{ID: "do-1", Role: domain.RoleDO},
			req:        UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "fo-elsewhere"},
			wantCode:   "INVALID_TRANSITION",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "store stale",
			actor:      Actor{ID: "ro-1", Role: domain.RoleRO},
			req:        UpdateWorkflowRequest{Status: "Escalated"},
			storeErr:   workflow.ErrStaleState,
			wantCode:   "STALE_STATE",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "store down",
			actor:      Actor{ID: "ro-1", Role: domain.RoleRO},
			req:        UpdateWorkflowRequest{Status: "Escalated"},
			storeErr:   errors.New("connection refused"),
			wantCode:   "STORE_UNAVAILABLE",
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101", WorkflowStatus: tc.status})
			store.updateErr = tc.storeErr
			svc := newFeedbackServiceForTest(store, nil, nil, nil)

			_, err := svc.UpdateWorkflowStatus(context.Background(), tc.actor, "fb-1", tc.req)
			code, status := domainCode(t, err)
			assert.Equal(t, tc.wantCode, code)
			assert.Equal(t, tc.wantStatus, status)
			assert.Zero(t, store.writes)
		})
	}
}

func TestUpdateWorkflowStatusUnknownTicket(t *testing.T) {
	svc := newFeedbackServiceForTest(newStubFeedbackStore(), nil, nil, nil)
	_, err := svc.UpdateWorkflowStatus(context.Background(), Actor{ID: "ro-1", Role: domain.RoleRO}, "ghost",
		UpdateWorkflowRequest{Status: "Escalated"})
	code, status := domainCode(t, err)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAssignOutOfStateCountsAsInvalidTransition(t *testing.T) {
	store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101", WorkflowStatus: domain.WorkflowResolved})
	metrics := observability.NewMetrics()
	svc := NewFeedbackService(FeedbackDependencies{
		Store:    store,
		Officers: &stubOfficers{users: map[string][]domain.User{}},
		Cache:    cache.NewStore(nil),
		Metrics:  metrics,
	}, nil, nil)

	_, err := svc.UpdateWorkflowStatus(context.Background(), Actor{ID: "do-1", Role: domain.RoleDO}, "fb-1",
		UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "someone"})
	code, _ := domainCode(t, err)
	assert.Equal(t, "INVALID_TRANSITION", code)

	expected := `
# HELP feedback_workflow_transitions_total Workflow transition requests by target state and outcome
# TYPE feedback_workflow_transitions_total counter
feedback_workflow_transitions_total{outcome="invalid_transition",target="Assigned"} 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected),
		"feedback_workflow_transitions_total"))
}

func TestFullWorkflowThroughService(t *testing.T) {
	store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101", ReviewStatus: domain.ReviewVerified})
	svc := newFeedbackServiceForTest(store, nil, nil, nil)
	ctx := context.Background()

	steps := []struct {
		actor Actor
		req   UpdateWorkflowRequest
		want  domain.WorkflowStatus
	}{
		{Actor{ID: "ro-1", Role: domain.RoleRO}, UpdateWorkflowRequest{Status: "Escalated"}, domain.WorkflowEscalated},
		{Actor{ID: "do-1", Role: domain.RoleDO}, UpdateWorkflowRequest{Status: "Assigned", AssignedTo: "fo-1"}, domain.WorkflowAssigned},
		{Actor{ID: "fo-1", Role: domain.RoleFO}, UpdateWorkflowRequest{Status: "Resolved"}, domain.WorkflowResolved},
		{Actor{ID: "do-1", Role: domain.RoleDO}, UpdateWorkflowRequest{Status: "Closed"}, domain.WorkflowClosed},
	}
	for _, step := range steps {
		res, err := svc.UpdateWorkflowStatus(ctx, step.actor, "fb-1", step.req)
		require.NoError(t, err)
		assert.Equal(t, step.want, res.Status)
	}

	detail, err := svc.Get(ctx, domain.RoleDO, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowClosed, detail.Feedback.WorkflowStatus)
	assert.Equal(t, domain.ReviewVerified, detail.Feedback.ReviewStatus)
	require.NotNil(t, detail.Feedback.AssignedTo)
	assert.Equal(t, "fo-1", *detail.Feedback.AssignedTo)
	assert.Len(t, detail.History, 4)
	assert.Nil(t, detail.Actions.Workflow)
	assert.False(t, detail.Actions.Review)
}

func TestReviewOfTicketClosedMidRequestMatchesClosedCode(t *testing.T) {
	store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101", WorkflowStatus: domain.WorkflowResolved})
	store.reviewErr = fmt.Errorf("%w: feedback fb-1 is closed", workflow.ErrInvalidTransition)
	svc := newFeedbackServiceForTest(store, nil, nil, nil)

	_, err := svc.Review(context.Background(), Actor{ID: "su-1", Role: domain.RoleSuperuser}, "fb-1",
		ReviewRequest{Status: "Verified"})
	code, status := domainCode(t, err)
	assert.Equal(t, "INVALID_TRANSITION", code)
	assert.Equal(t, http.StatusConflict, status)
}

func TestReview(t *testing.T) {
	store := newStubFeedbackStore(
		domain.Feedback{ID: "open", WorkflowStatus: domain.WorkflowAssigned, ReviewStatus: domain.ReviewNotVerified},
		domain.Feedback{ID: "closed", WorkflowStatus: domain.WorkflowClosed, ReviewStatus: domain.ReviewNotVerified},
	)
	svc := newFeedbackServiceForTest(store, nil, nil, nil)
	ctx := context.Background()

	updated, err := svc.Review(ctx, Actor{ID: "su-1", Role: domain.RoleSuperuser}, "open", ReviewRequest{Status: "Verified"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewVerified, updated.ReviewStatus)
	assert.Equal(t, domain.WorkflowAssigned, updated.WorkflowStatus)

	_, err = svc.Review(ctx, Actor{ID: "fo-1", Role: domain.RoleFO}, "open", ReviewRequest{Status: "Rejected"})
	code, status := domainCode(t, err)
	assert.Equal(t, "FORBIDDEN", code)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = svc.Review(ctx, Actor{ID: "do-1", Role: domain.RoleDO}, "closed", ReviewRequest{Status: "Rejected"})
	code, _ = domainCode(t, err)
	assert.Equal(t, "INVALID_TRANSITION", code)

	_, err = svc.Review(ctx, Actor{ID: "do-1", Role: domain.RoleDO}, "open", ReviewRequest{Status: "Maybe"})
	code, _ = domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
}

func TestListFieldOfficersUsesCache(t *testing.T) {
	officers := &stubOfficers{users: map[string][]domain.User{
		"RO-101": {{ID: "fo-1", Username: "asha", FullName: "Asha K"}, {ID: "fo-2", Username: "bala"}},
	}}
	svc := newFeedbackServiceForTest(newStubFeedbackStore(), officers, nil, nil)

	got, err := svc.ListFieldOfficers(context.Background(), "RO-101")
	require.NoError(t, err)
	assert.Equal(t, []domain.Officer{
		{ID: "fo-1", Username: "asha", DisplayName: "Asha K"},
		{ID: "fo-2", Username: "bala", DisplayName: "bala"},
	}, got)

	_, err = svc.ListFieldOfficers(context.Background(), " ")
	code, _ := domainCode(t, err)
	assert.Equal(t, "VALIDATION_FAILED", code)
}

func TestListFieldOfficersFallsBackWhenCacheFails(t *testing.T) {
	officers := &stubOfficers{users: map[string][]domain.User{"RO-101": {{ID: "fo-1", Username: "asha"}}}}
	svc := newFeedbackServiceForTest(newStubFeedbackStore(), officers, failingCache{}, nil)

	got, err := svc.ListFieldOfficers(context.Background(), "RO-101")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, officers.calls)

	options, err := svc.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"RO-101", "RO-202"}, options.ROCodes)
	assert.Contains(t, options.Statuses, "Not Verified")
	assert.Equal(t, []string{"Pending", "Escalated", "Assigned", "Resolved", "Closed"}, options.WorkflowStatuses)
}

func TestConcurrentTransitionsCommitOnce(t *testing.T) {
	store := newStubFeedbackStore(domain.Feedback{ID: "fb-1", BranchCode: "RO-101"})
	svc := newFeedbackServiceForTest(store, nil, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UpdateWorkflowStatus(context.Background(), Actor{ID: "ro-1", Role: domain.RoleRO}, "fb-1",
				UpdateWorkflowRequest{Status: "Escalated"})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		code, status := domainCode(t, err)
		assert.Contains(t, []string{"STALE_STATE", "INVALID_TRANSITION"}, code)
		assert.Equal(t, http.StatusConflict, status)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, store.writes)
}
