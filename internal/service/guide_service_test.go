package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
)

type guideRosterRepoStub struct {
	byID    map[string]*models.Guide
	emails  map[string]string
	created []*models.Guide
	updated []*models.Guide
}

func newGuideRosterRepoStub() *guideRosterRepoStub {
	return &guideRosterRepoStub{
		byID:   make(map[string]*models.Guide),
		emails: make(map[string]string),
	}
}

func (s *guideRosterRepoStub) add(guide *models.Guide) {
	s.byID[guide.ID] = guide
	s.emails[strings.ToLower(guide.Email)] = guide.ID
}

func (s *guideRosterRepoStub) List(_ context.Context, _ models.GuideFilter) ([]models.Guide, int, error) {
	var guides []models.Guide
	for _, guide := range s.byID {
		guides = append(guides, *guide)
	}
	return guides, len(guides), nil
}

func (s *guideRosterRepoStub) FindByID(_ context.Context, id string) (*models.Guide, error) {
	guide, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *guide
	return &copied, nil
}

func (s *guideRosterRepoStub) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return false, nil
	}
	return id != excludeID, nil
}

func (s *guideRosterRepoStub) Create(_ context.Context, guide *models.Guide) error {
	guide.ID = "g-new"
	s.created = append(s.created, guide)
	s.add(guide)
	return nil
}

func (s *guideRosterRepoStub) Update(_ context.Context, guide *models.Guide) error {
	if _, ok := s.byID[guide.ID]; !ok {
		return sql.ErrNoRows
	}
	s.updated = append(s.updated, guide)
	s.byID[guide.ID] = guide
	return nil
}

func TestGuideServiceCreateForcesZeroRating(t *testing.T) {
	repo := newGuideRosterRepoStub()
	svc := NewGuideService(repo, nil, nil, nil)

	guide, err := svc.Create(context.Background(), CreateGuideRequest{
		FullName:        "Omar Haddad",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000001",
		Specializations: "Desert, Night Tour, ",
		Status:          "available",
	})
	require.NoError(t, err)
	assert.Equal(t, "g-new", guide.ID)
	assert.Zero(t, guide.Rating)
	assert.Equal(t, []string{"Desert", "Night Tour"}, []string(guide.Specializations))
	assert.Equal(t, models.GuideStatusAvailable, guide.Status)
	require.Len(t, repo.created, 1)
}

func TestGuideServiceCreateDuplicateEmail(t *testing.T) {
	repo := newGuideRosterRepoStub()
	repo.add(&models.Guide{ID: "g1", Email: "omar@oasistrek.io"})
	svc := NewGuideService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateGuideRequest{
		FullName:        "Another Omar",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000002",
		Specializations: "Hiking",
		Status:          "available",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestGuideServiceCreateUnknownStatus(t *testing.T) {
	svc := NewGuideService(newGuideRosterRepoStub(), nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateGuideRequest{
		FullName:        "Omar Haddad",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000001",
		Specializations: "Desert",
		Status:          "retired",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGuideServiceCreateEmptySpecializations(t *testing.T) {
	svc := NewGuideService(newGuideRosterRepoStub(), nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateGuideRequest{
		FullName:        "Omar Haddad",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000001",
		Specializations: " , ,",
		Status:          "available",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGuideServiceUpdateKeepsRating(t *testing.T) {
	repo := newGuideRosterRepoStub()
	repo.add(&models.Guide{
		ID:              "g1",
		FullName:        "Omar Haddad",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000001",
		Rating:          4.7,
		Specializations: []string{"Desert"},
		Status:          models.GuideStatusAvailable,
	})
	svc := NewGuideService(repo, nil, nil, nil)

	updated, err := svc.Update(context.Background(), "g1", UpdateGuideRequest{
		FullName:        "Omar K. Haddad",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000001",
		Specializations: "Desert, Canyoning",
		Status:          "offline",
	})
	require.NoError(t, err)
	assert.Equal(t, "Omar K. Haddad", updated.FullName)
	assert.Equal(t, 4.7, updated.Rating)
	assert.Equal(t, models.GuideStatusOffline, updated.Status)
	assert.Equal(t, []string{"Desert", "Canyoning"}, []string(updated.Specializations))
}

func TestGuideServiceUpdateEmailTakenByOther(t *testing.T) {
	repo := newGuideRosterRepoStub()
	repo.add(&models.Guide{ID: "g1", Email: "omar@oasistrek.io", Specializations: []string{"Desert"}})
	repo.add(&models.Guide{ID: "g2", Email: "layla@oasistrek.io", Specializations: []string{"Hiking"}})
	svc := NewGuideService(repo, nil, nil, nil)

	_, err := svc.Update(context.Background(), "g1", UpdateGuideRequest{
		FullName:        "Omar Haddad",
		Email:           "layla@oasistrek.io",
		Phone:           "+962790000001",
		Specializations: "Desert",
		Status:          "available",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestGuideServiceUpdateMissing(t *testing.T) {
	svc := NewGuideService(newGuideRosterRepoStub(), nil, nil, nil)

	_, err := svc.Update(context.Background(), "missing", UpdateGuideRequest{
		FullName:        "Omar Haddad",
		Email:           "omar@oasistrek.io",
		Phone:           "+962790000001",
		Specializations: "Desert",
		Status:          "available",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGuideServiceListRejectsUnknownStatus(t *testing.T) {
	svc := NewGuideService(newGuideRosterRepoStub(), nil, nil, nil)

	_, _, err := svc.List(context.Background(), models.GuideFilter{Status: "asleep"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
