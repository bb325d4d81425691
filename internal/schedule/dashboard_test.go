package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/insurecontent/internal/apiclient"
	"github.com/kingrea/insurecontent/internal/content"
)

type fakeLister struct {
	current    content.Schedule
	currentErr error
	list       []content.Schedule
	listErr    error
}

func (f fakeLister) GetCurrentWeekSchedule(context.Context) (content.Schedule, error) {
	return f.current, f.currentErr
}

func (f fakeLister) ListSchedules(context.Context) ([]content.Schedule, error) {
	return f.list, f.listErr
}

func notFound(err error) bool { return errors.Is(err, apiclient.ErrNotFound) }

func TestDashboardLoadTrimsRecent(t *testing.T) {
	var list []content.Schedule
	for i := 0; i < 8; i++ {
		list = append(list, content.Schedule{ID: int64(i + 1)})
	}
	d := NewDashboard(fakeLister{current: content.Schedule{ID: 1}, list: list}, notFound, 3, nil, nil)
	overview, err := d.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, overview.Current)
	assert.Equal(t, int64(1), overview.Current.ID)
	assert.Len(t, overview.Recent, 3)
}

func TestDashboardMissingCurrentWeekIsNotAnError(t *testing.T) {
	d := NewDashboard(fakeLister{
		currentErr: &apiclient.APIError{Status: 404, Message: "No schedule found for current week"},
	}, notFound, 0, nil, nil)
	overview, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, overview.Current)
	assert.Empty(t, overview.Recent)
}

func TestDashboardKeepsAuthErrorsDetectable(t *testing.T) {
	d := NewDashboard(fakeLister{
		currentErr: &apiclient.APIError{Status: 401, Message: "Authentication required"},
		list:       []content.Schedule{{ID: 4}},
	}, notFound, 0, nil, nil)
	overview, err := d.Load(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.Len(t, overview.Recent, 1)
}

// orderedLister answers the schedule list only after the current-week call
// has already failed.
type orderedLister struct {
	currentDone chan struct{}
	list        []content.Schedule
}

func (o orderedLister) GetCurrentWeekSchedule(context.Context) (content.Schedule, error) {
	defer close(o.currentDone)
	return content.Schedule{}, &apiclient.APIError{Status: 500, Message: "database unavailable"}
}

func (o orderedLister) ListSchedules(ctx context.Context) ([]content.Schedule, error) {
	<-o.currentDone
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.list, nil
}

func TestDashboardHalvesFailIndependently(t *testing.T) {
	d := NewDashboard(orderedLister{
		currentDone: make(chan struct{}),
		list:        []content.Schedule{{ID: 7}, {ID: 6}},
	}, notFound, 0, nil, nil)
	overview, err := d.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Contains(t, content.UserMessage(err), "database unavailable")
	assert.Nil(t, overview.Current)
	require.Len(t, overview.Recent, 2)
	assert.Equal(t, int64(7), overview.Recent[0].ID)
}
