package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"eromax-ledger/internal/core/ports"
	"eromax-ledger/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSettlementScheduler_RejectsBadSpec(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := NewSettlementScheduler(mocks.NewMockSettlementService(ctrl), "not a cron", "50 23 * * *", time.UTC, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewSettlementScheduler(mocks.NewMockSettlementService(ctrl), "55 23 * * *", "61 23 * * *", time.UTC, zerolog.Nop())
	assert.Error(t, err)
}

func TestSettlementScheduler_FireRunsJobForToday(t *testing.T) {
	ctrl := gomock.NewController(t)
	settlement := mocks.NewMockSettlementService(ctrl)
	sched, err := NewSettlementScheduler(settlement, "55 23 * * *", "50 23 * * *", time.UTC, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2024, 6, 10, 23, 55, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	settlement.EXPECT().RunDaily(gomock.Any(), now).Return(&ports.SettlementRun{Job: JobDaily}, nil)
	settlement.EXPECT().RunPickups(gomock.Any(), now).Return(nil, errors.New("lock unavailable"))

	sched.fire(JobDaily)
	sched.fire(JobPickups)
}

func TestSettlementScheduler_StartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	sched, err := NewSettlementScheduler(mocks.NewMockSettlementService(ctrl), "55 23 * * *", "50 23 * * *", time.UTC, zerolog.Nop())
	require.NoError(t, err)

	sched.Start()
	sched.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))
	require.NoError(t, sched.Stop(ctx))
}
