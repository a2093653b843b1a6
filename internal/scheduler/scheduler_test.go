package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtrntr/lutinex/internal/logging"
	"github.com/xtrntr/lutinex/internal/market"
)

type fakeAdvancer struct {
	errs  []error
	calls int
}

func (f *fakeAdvancer) next() error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeAdvancer) AdvanceDay(ctx context.Context) (market.DayReport, error) {
	if err := f.next(); err != nil {
		return market.DayReport{}, err
	}
	return market.DayReport{Day: int64(f.calls)}, nil
}

func (f *fakeAdvancer) PayDividends(ctx context.Context) (market.DividendReport, error) {
	if err := f.next(); err != nil {
		return market.DividendReport{}, err
	}
	return market.DividendReport{Payouts: f.calls}, nil
}

func conflict() error {
	return fmt.Errorf("failed to advance day: %w", market.ErrConflict)
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name          string
		errs          []error
		expectError   error
		expectCalls   int
		expectAdvance bool
	}{
		{name: "Success", expectCalls: 1, expectAdvance: true},
		{name: "RetriesConflicts", errs: []error{conflict(), conflict()}, expectCalls: 3, expectAdvance: true},
		{name: "GivesUp", errs: []error{conflict(), conflict(), conflict()}, expectError: market.ErrConflict, expectCalls: 3},
		{name: "OtherErrorsAreFinal", errs: []error{errors.New("boom")}, expectCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &fakeAdvancer{errs: tt.errs}
			var advanced []market.DayReport
			s := New(adv, logging.Discard(),
				WithRetries(2, time.Millisecond),
				OnAdvance(func(ctx context.Context, r market.DayReport) { advanced = append(advanced, r) }),
			)

			report, err := s.RunOnce(context.Background())
			assert.Equal(t, tt.expectCalls, adv.calls)
			if !tt.expectAdvance {
				require.Error(t, err)
				if tt.expectError != nil {
					assert.ErrorIs(t, err, tt.expectError)
				}
				assert.Empty(t, advanced)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(tt.expectCalls), report.Day)
			require.Len(t, advanced, 1)
			assert.Equal(t, report, advanced[0])
		})
	}
}

func TestRunOnceCanceled(t *testing.T) {
	adv := &fakeAdvancer{errs: []error{conflict(), conflict()}}
	s := New(adv, logging.Discard(), WithRetries(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, adv.calls)
}

func TestPayOnce(t *testing.T) {
	tests := []struct {
		name        string
		errs        []error
		expectError error
		expectCalls int
	}{
		{name: "Success", expectCalls: 1},
		{name: "RetriesConflicts", errs: []error{conflict(), conflict()}, expectCalls: 3},
		{name: "GivesUp", errs: []error{conflict(), conflict(), conflict()}, expectError: market.ErrConflict, expectCalls: 3},
		{name: "OtherErrorsAreFinal", errs: []error{market.ErrNotFound}, expectError: market.ErrNotFound, expectCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &fakeAdvancer{errs: tt.errs}
			s := New(adv, logging.Discard(), WithRetries(2, time.Millisecond))

			report, err := s.PayOnce(context.Background())
			assert.Equal(t, tt.expectCalls, adv.calls)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectCalls, report.Payouts)
		})
	}
}

func TestSchedule(t *testing.T) {
	s := New(&fakeAdvancer{}, logging.Discard())
	assert.NoError(t, s.Schedule("@midnight"))
	assert.NoError(t, s.Schedule("0 0 * * *"))
	assert.Error(t, s.Schedule("whenever"))

	s.Start()
	<-s.Stop().Done()
}
