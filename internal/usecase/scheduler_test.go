package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinMuse/internal/domain"
)

type immediateDriver struct {
	started bool
	stopped bool
}

func (d *immediateDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	job(time.Now())
	return nil
}

func (d *immediateDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipelineCycle(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)

	p := NewPipeline(PipelineDeps{
		Source:     &fakeSource{items: []domain.RawArticle{{Title: "t", URL: "u1", Content: "c"}}},
		Repository: fx.repo,
		Summarizer: &scriptedSummarizer{},
		Publisher:  fx.publisher,
	})
	driver := &immediateDriver{}
	s := NewScheduler(driver, p, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.started)
	assert.True(t, driver.stopped)

	exists, err := fx.repo.ExistsByURL(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
