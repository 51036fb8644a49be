package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/repository"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type guideRequestRepoStub struct {
	byID       map[string]*models.GuideRequestDetail
	created    []*models.GuideRequest
	responded  []repository.RespondParams
	listResult []models.GuideRequestDetail
	listTotal  int
	lastFilter models.GuideRequestFilter
}

func newGuideRequestRepoStub() *guideRequestRepoStub {
	return &guideRequestRepoStub{byID: make(map[string]*models.GuideRequestDetail)}
}

func (s *guideRequestRepoStub) Create(_ context.Context, request *models.GuideRequest) error {
	request.ID = "r-new"
	s.created = append(s.created, request)
	return nil
}

func (s *guideRequestRepoStub) GetByID(_ context.Context, id string) (*models.GuideRequestDetail, error) {
	detail, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *detail
	return &copied, nil
}

func (s *guideRequestRepoStub) List(_ context.Context, filter models.GuideRequestFilter) ([]models.GuideRequestDetail, int, error) {
	s.lastFilter = filter
	return s.listResult, s.listTotal, nil
}

func (s *guideRequestRepoStub) Respond(_ context.Context, params repository.RespondParams) error {
	detail, ok := s.byID[params.ID]
	if !ok || detail.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	s.responded = append(s.responded, params)
	detail.Status = params.Status
	detail.AssignedGuideID = params.AssignedGuideID
	detail.AdminResponse = params.AdminResponse
	reviewer := params.RespondedBy
	detail.RespondedBy = &reviewer
	at := params.RespondedAt
	detail.RespondedAt = &at
	return nil
}

func newGuideRequestFixture() (*GuideRequestService, *guideRequestRepoStub, *guideRepoStub) {
	repo := newGuideRequestRepoStub()
	guides := &guideRepoStub{guides: map[string]*models.Guide{
		"g1": {ID: "g1", Status: models.GuideStatusAvailable},
	}}
	return NewGuideRequestService(repo, guides, nil, nil, nil), repo, guides
}

func pendingRequest(id string) *models.GuideRequestDetail {
	return &models.GuideRequestDetail{
		GuideRequest: models.GuideRequest{ID: id, TouristID: "t1", Adults: 2, Status: models.RequestStatusPending},
		TouristName:  "Aisha Rahman",
	}
}

func TestGuideRequestServiceCreateDefaultsPending(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()

	note := "arriving friday"
	created, err := svc.Create(context.Background(), "t1", CreateGuideRequestRequest{Adults: 2, Children: 1, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "r-new", created.ID)
	assert.Equal(t, models.RequestStatusPending, created.Status)
	assert.Equal(t, "t1", created.TouristID)
	require.Len(t, repo.created, 1)
}

func TestGuideRequestServiceCreateRequiresAdults(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()

	_, err := svc.Create(context.Background(), "t1", CreateGuideRequestRequest{Adults: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestGuideRequestServiceCreateRejectsNegativeChildren(t *testing.T) {
	svc, _, _ := newGuideRequestFixture()

	_, err := svc.Create(context.Background(), "t1", CreateGuideRequestRequest{Adults: 1, Children: -1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGuideRequestServiceRespondApprove(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()
	repo.byID["r1"] = pendingRequest("r1")

	guideID := "g1"
	response := "Omar will meet you at the visitor centre"
	detail, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{
		Status:   "approved",
		GuideID:  &guideID,
		Response: &response,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, detail.Status)
	require.NotNil(t, detail.AssignedGuideID)
	assert.Equal(t, "g1", *detail.AssignedGuideID)

	require.Len(t, repo.responded, 1)
	params := repo.responded[0]
	assert.Equal(t, "admin-1", params.RespondedBy)
	assert.False(t, params.RespondedAt.IsZero())
}

func TestGuideRequestServiceRespondApproveWithoutGuide(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()
	repo.byID["r1"] = pendingRequest("r1")

	detail, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, detail.Status)
	assert.Nil(t, detail.AssignedGuideID)
}

func TestGuideRequestServiceRejectIgnoresGuidePayload(t *testing.T) {
	svc, repo, guides := newGuideRequestFixture()
	repo.byID["r1"] = pendingRequest("r1")
	guides.guides = map[string]*models.Guide{}

	guideID := "g1"
	detail, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{
		Status:  "rejected",
		GuideID: &guideID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, detail.Status)
	assert.Nil(t, detail.AssignedGuideID)

	require.Len(t, repo.responded, 1)
	assert.Nil(t, repo.responded[0].AssignedGuideID)
}

func TestGuideRequestServiceRespondAlreadyReviewed(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()
	reviewed := pendingRequest("r1")
	reviewed.Status = models.RequestStatusApproved
	repo.byID["r1"] = reviewed

	_, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{Status: "rejected"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.responded)
}

func TestGuideRequestServiceRespondBusyGuide(t *testing.T) {
	svc, repo, guides := newGuideRequestFixture()
	repo.byID["r1"] = pendingRequest("r1")
	guides.guides["g1"].Status = models.GuideStatusBusy

	guideID := "g1"
	_, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{Status: "approved", GuideID: &guideID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGuideRequestServiceRespondUnknownGuide(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()
	repo.byID["r1"] = pendingRequest("r1")

	guideID := "missing"
	_, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{Status: "approved", GuideID: &guideID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGuideRequestServiceRespondMissingRequest(t *testing.T) {
	svc, _, _ := newGuideRequestFixture()

	_, err := svc.Respond(context.Background(), "missing", "admin-1", RespondGuideRequestRequest{Status: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGuideRequestServiceRespondInvalidStatus(t *testing.T) {
	svc, _, _ := newGuideRequestFixture()

	_, err := svc.Respond(context.Background(), "r1", "admin-1", RespondGuideRequestRequest{Status: "maybe"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGuideRequestServiceListForTouristScopesFilter(t *testing.T) {
	svc, repo, _ := newGuideRequestFixture()
	repo.listResult = []models.GuideRequestDetail{*pendingRequest("r1")}
	repo.listTotal = 1

	list, pagination, err := svc.ListForTourist(context.Background(), "t1", models.GuideRequestFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", repo.lastFilter.TouristID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestGuideRequestServiceListRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newGuideRequestFixture()

	_, _, err := svc.List(context.Background(), models.GuideRequestFilter{Status: "escalated"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
