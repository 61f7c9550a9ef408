package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/adopshq/adflow/pkg/eventbus"
	"github.com/adopshq/adflow/pkg/events"
	"github.com/adopshq/adflow/pkg/mocks"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence/file"
)

func TestService_Raise_PublishesOnNewAlertOnly(t *testing.T) {
	repo := file.NewPersistence(t.TempDir()).Alerts()
	at := time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)

	bus := new(mocks.MockEventBus)
	bus.On("Publish", mock.Anything, "camp-1", mock.MatchedBy(func(event eventbus.Event) bool {
		raised, ok := event.(events.AlertRaised)

		return ok && raised.Category == models.AlertCategoryPacing
	})).Return(nil).Once()

	service := NewService(repo, bus, nil).WithClock(fixedClock(at))

	_, err := service.Raise(t.Context(), "camp-1", models.AlertCategoryPacing, models.SeverityWarning, "spend at 150%")
	require.NoError(t, err)

	// A deduplicated occurrence updates the row but publishes nothing.
	_, err = service.Raise(t.Context(), "camp-1", models.AlertCategoryPacing, models.SeverityCritical, "spend at 210%")
	require.NoError(t, err)

	bus.AssertExpectations(t)
}

func TestService_Raise_RepositoryErrorSurfaces(t *testing.T) {
	repo := new(mocks.MockAlertRepository)
	repo.On("AlertByID", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	service := NewService(repo, nil, nil)

	_, err := service.Raise(t.Context(), "camp-1", models.AlertCategoryBudget, models.SeverityWarning, "underspend")
	assert.ErrorContains(t, err, "disk full")
	repo.AssertExpectations(t)
}
