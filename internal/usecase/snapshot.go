package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/sketchroom"
	"github.com/totegamma/sketchroom/internal/domain"
)

// SnapshotUsecase keeps the authoritative raster and decides when it is
// stale. The server never renders; it only stores what clients upload.
type SnapshotUsecase struct {
	repo       SnapshotRepository
	staleAfter time.Duration
	now        func() time.Time
}

func NewSnapshotUsecase(repo SnapshotRepository, staleAfter time.Duration, now func() time.Time) *SnapshotUsecase {
	if staleAfter <= 0 {
		staleAfter = domain.DefaultSnapshotStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &SnapshotUsecase{
		repo:       repo,
		staleAfter: staleAfter,
		now:        now,
	}
}

// Accept overwrites the snapshot unconditionally. UpdatedAt is the arrival
// time, not anything the client claims.
func (uc *SnapshotUsecase) Accept(ctx context.Context, dataURL string) (domain.Snapshot, error) {
	if !sketchroom.IsImageDataURL(dataURL) {
		return domain.Snapshot{}, domain.ValidationError{Field: "snapshot", Reason: "not an image data URL"}
	}
	snapshot := domain.Snapshot{
		ImageData: dataURL,
		UpdatedAt: uc.now(),
	}
	if err := uc.repo.Save(ctx, snapshot); err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "SnapshotUsecase.Accept: repo.Save failed")
	}
	return snapshot, nil
}

func (uc *SnapshotUsecase) Current(ctx context.Context) (domain.Snapshot, bool, error) {
	snapshot, ok, err := uc.repo.Load(ctx)
	if err != nil {
		return domain.Snapshot{}, false, errors.Wrap(err, "SnapshotUsecase.Current: repo.Load failed")
	}
	return snapshot, ok, nil
}

func (uc *SnapshotUsecase) Invalidate(ctx context.Context) error {
	if err := uc.repo.Clear(ctx); err != nil {
		return errors.Wrap(err, "SnapshotUsecase.Invalidate: repo.Clear failed")
	}
	return nil
}

// NeedsRefresh reports whether a client should be asked for a new raster.
func (uc *SnapshotUsecase) NeedsRefresh(ctx context.Context, anyActive bool) (bool, error) {
	if !anyActive {
		return false, nil
	}
	snapshot, ok, err := uc.Current(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return uc.now().Sub(snapshot.UpdatedAt) > uc.staleAfter, nil
}

// UsableForBootstrap reports whether a joiner may render the snapshot instead
// of replaying the log: it must not predate the last stroke mutation.
func UsableForBootstrap(snapshot domain.Snapshot, lastMutationAt time.Time) bool {
	return snapshot.ImageData != "" && !snapshot.UpdatedAt.Before(lastMutationAt)
}
