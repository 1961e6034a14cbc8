package actions

import (
	"context"
	"errors"

	"storyserver/models"
	"storyserver/multiplayer/lifecycle"
	"storyserver/multiplayer/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxCopyAttempts is how often a queued copy job is tried before it is dropped.
	MaxCopyAttempts = 5
	// drainLimit bounds the jobs handled by one RetryPendingCopies run.
	drainLimit    = 100
	fanOutWorkers = 8
)

// fanOutCopies writes a personal copy of the finished story for every member.
// Failures are isolated per user and queued for retry.
func (s *Service) fanOutCopies(ctx context.Context, room *models.Room, story *models.Story) {
	var g errgroup.Group
	g.SetLimit(fanOutWorkers)
	for _, userID := range lifecycle.Members(room) {
		userID := userID
		g.Go(func() error {
			s.saveCopy(ctx, userID, room.RoomCode, story)
			return nil
		})
	}
	g.Wait()
}

// saveCopy upserts userID's copy of story, queueing a retry job on failure.
func (s *Service) saveCopy(ctx context.Context, userID, roomCode string, story *models.Story) {
	err := s.Stories.UpsertCopy(ctx, userID, roomCode, story)
	if err == nil {
		return
	}
	s.Logger.Error("Failed to save story copy",
		zap.String("roomCode", roomCode),
		zap.String("userID", userID),
		zap.Error(err))

	if s.Copies == nil {
		return
	}
	job := storage.CopyJob{
		ID:       uuid.New().String(),
		UserID:   userID,
		RoomCode: roomCode,
		StoryID:  story.ID,
	}
	if err := s.Copies.Enqueue(ctx, job); err != nil {
		s.Logger.Error("Failed to queue story copy", zap.String("jobID", job.ID), zap.Error(err))
	}
}

// RetryPendingCopies drains queued copy jobs. A job that fails again is
// requeued until it has been tried MaxCopyAttempts times. It returns the
// number of copies written.
func (s *Service) RetryPendingCopies(ctx context.Context) (int, error) {
	if s.Copies == nil {
		return 0, nil
	}
	written := 0
	var retry []storage.CopyJob
	for i := 0; i < drainLimit; i++ {
		job, err := s.Copies.Dequeue(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return written, err
		}

		story, err := s.Stories.Load(ctx, job.StoryID)
		if errors.Is(err, storage.ErrNotFound) {
			s.Logger.Warn("Dropping copy job for missing story", zap.String("jobID", job.ID), zap.Uint("storyID", job.StoryID))
			continue
		}
		if err == nil {
			err = s.Stories.UpsertCopy(ctx, job.UserID, job.RoomCode, story)
		}
		if err == nil {
			written++
			continue
		}

		job.Attempts++
		if job.Attempts >= MaxCopyAttempts {
			s.Logger.Error("Giving up on story copy",
				zap.String("jobID", job.ID),
				zap.String("userID", job.UserID),
				zap.String("roomCode", job.RoomCode),
				zap.Error(err))
			continue
		}
		retry = append(retry, job)
	}

	// 失敗したジョブは次回の実行まで待たせる
	for _, job := range retry {
		if err := s.Copies.Enqueue(ctx, job); err != nil {
			return written, err
		}
	}
	return written, nil
}
