package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookshelf/internal/logging"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestService_Cleanup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := NewMockRepository(ctrl)
	blacklist := NewMockBlacklistRepository(ctrl)

	core, logs := observer.New(zap.InfoLevel)
	svc := NewService(repo, blacklist, logging.NewZapLogger(zap.New(core)))

	repo.EXPECT().CleanupExpired(gomock.Any()).Return(int64(3), nil)
	blacklist.EXPECT().CleanupExpired(gomock.Any()).Return(int64(0), errors.New("db down"))

	svc.Cleanup(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("expired sessions removed").Len())
	assert.Equal(t, 1, logs.FilterMessage("blacklist cleanup failed").Len())
}

func TestService_RunCleanupStopsWithContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repo := NewMockRepository(ctrl)
	blacklist := NewMockBlacklistRepository(ctrl)
	repo.EXPECT().CleanupExpired(gomock.Any()).Return(int64(0), nil).AnyTimes()
	blacklist.EXPECT().CleanupExpired(gomock.Any()).Return(int64(0), nil).AnyTimes()

	svc := NewService(repo, blacklist, logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}
