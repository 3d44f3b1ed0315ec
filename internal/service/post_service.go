package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/tanishq27/postloom/internal/models"
	"github.com/tanishq27/postloom/internal/repository"
	"github.com/tanishq27/postloom/internal/schedule"
	"github.com/tanishq27/postloom/internal/transfer"
)

var (
	ErrPostNotFound   = errors.New("post doesn't exist")
	ErrNotEditable    = errors.New("post can no longer be edited")
	ErrQuotaExceeded  = errors.New("monthly post limit reached")
	ErrScheduleInPast = errors.New("scheduled time is in the past")
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (int64, error)
	UploadAsset(ctx context.Context, userID int64, file *multipart.FileHeader) (int64, error)
	Schedule(ctx context.Context, userID int64, req *transfer.ScheduleRequest) error
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	Attempts(ctx context.Context, userID, postID int64) ([]*models.PublishAttempt, error)
	Archive(ctx context.Context, userID, postID int64) error
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db         *sql.DB
	pr         repository.PostRepository
	pa         repository.PublishAttemptRepository
	ma         repository.MediaAssetRepository
	r2         R2Service
	validate   *validator.Validate
	monthLimit int
	publicBase string

	now func() time.Time
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	pa repository.PublishAttemptRepository,
	ma repository.MediaAssetRepository,
	r2 R2Service,
	monthLimit int,
	publicBase string) PostService {
	return &postService{
		db:         db,
		pr:         pr,
		pa:         pa,
		ma:         ma,
		r2:         r2,
		validate:   validator.New(),
		monthLimit: monthLimit,
		publicBase: publicBase,
		now:        time.Now,
	}
}

// CreatePost persists a new post. With no targets it stays a draft; with
// targets but no schedule it becomes ready; with a valid future schedule it
// becomes scheduled. The monthly quota is checked here, at authoring time,
// never at publish time.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (int64, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}
	if err := s.validate.Struct(pc); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	post := models.Post{
		UserID:   userID,
		Caption:  pc.Caption,
		Hashtags: pc.Hashtags,
		Targets:  pc.Targets,
		Status:   models.PostStatusDraft,
	}
	if len(pc.Targets) > 0 {
		post.Status = models.PostStatusReady
	}

	if pc.Date != "" || pc.Time != "" {
		if len(pc.Targets) == 0 {
			err := errors.New("a schedule requires at least one target")
			slog.Info(err.Error())
			return 0, err
		}
		instant, err := schedule.Normalize(pc.Date, pc.Time, pc.Timezone)
		if err != nil {
			return 0, err
		}
		if !instant.After(s.now()) {
			return 0, ErrScheduleInPast
		}
		post.ScheduledAt = sql.NullTime{Time: instant, Valid: true}
		post.ScheduleTZ = sql.NullString{String: pc.Timezone, Valid: true}
		post.Status = models.PostStatusScheduled
	}

	if len(pc.Targets) > 0 {
		if err := s.checkQuota(ctx, userID); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if file != nil {
		assetID, ferr := s.processFile(ctx, tx, userID, file)
		if ferr != nil {
			err = ferr
			return 0, err
		}
		post.MediaAssetID = sql.NullInt64{Int64: assetID, Valid: true}
	} else if pc.MediaAssetID != 0 {
		owned, cerr := s.ma.CheckByUserID(ctx, pc.MediaAssetID, userID)
		if cerr != nil {
			err = cerr
			return 0, err
		}
		if !owned {
			err = errors.New("media asset doesn't exist")
			slog.Info(err.Error())
			return 0, err
		}
		post.MediaAssetID = sql.NullInt64{Int64: pc.MediaAssetID, Valid: true}
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return postID, nil
}

// Schedule attaches a new schedule to an existing post and resets its
// automatic retry budget. Posts that already published cannot be
// rescheduled; a failed post can, which is the user-driven recovery path.
func (s *postService) Schedule(ctx context.Context, userID int64, req *transfer.ScheduleRequest) error {
	if err := s.validate.Struct(req); err != nil {
		slog.Info(err.Error())
		return err
	}

	post, err := s.pr.GetByID(ctx, req.PostID)
	if err != nil {
		return err
	}
	if post == nil || post.UserID != userID {
		return ErrPostNotFound
	}
	if !statusIn(post.Status, models.EditableStatuses) {
		return ErrNotEditable
	}
	if len(post.Targets) == 0 {
		err := errors.New("a schedule requires at least one target")
		slog.Info(err.Error())
		return err
	}

	instant, err := schedule.Normalize(req.Date, req.Time, req.Timezone)
	if err != nil {
		return err
	}
	if !instant.After(s.now()) {
		return ErrScheduleInPast
	}

	return s.pr.UpdateSchedule(ctx, post.ID, models.PostStatusScheduled, instant, req.Timezone)
}

// UploadAsset stores an image on its own, so one asset can back several
// posts via media_asset_id.
func (s *postService) UploadAsset(ctx context.Context, userID int64, file *multipart.FileHeader) (int64, error) {
	if file == nil {
		err := errors.New("no file provided")
		slog.Info(err.Error())
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	assetID, err := s.processFile(ctx, tx, userID, file)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return assetID, nil
}

func (s *postService) checkQuota(ctx context.Context, userID int64) error {
	if s.monthLimit <= 0 {
		return nil
	}

	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	used, err := s.pr.CountWithIntentInRange(ctx, userID, from, to)
	if err != nil {
		return err
	}
	if used >= s.monthLimit {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *postService) processFile(ctx context.Context, tx *sql.Tx, userID int64, file *multipart.FileHeader) (int64, error) {
	allowedTypes := map[string]struct{}{
		"jpeg": {}, "png": {}, "jpg": {}, "gif": {}, "webp": {},
	}

	fileContent, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return 0, fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return 0, fmt.Errorf("unsupported file type: %w", err)
	}
	if _, ok := allowedTypes[fileType.Extension]; !ok {
		return 0, fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	if err := s.r2.UploadToR2(ctx, id, fileBytes, fileType.MIME.Value); err != nil {
		slog.Error(err.Error())
		return 0, err
	}

	ma := models.MediaAsset{
		UserID:   userID,
		FileName: id,
		FileType: fileType.MIME.Value,
		FileSize: int64(len(fileBytes)),
		FileURL:  fmt.Sprintf("%s/%s", s.publicBase, id),
	}

	return s.ma.Create(ctx, tx, &ma)
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil || post.UserID != userID {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Attempts(ctx context.Context, userID, postID int64) ([]*models.PublishAttempt, error) {
	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		return nil, ErrPostNotFound
	}
	return s.pa.ListByPostID(ctx, postID)
}

// Archive removes a post from every listing and from the dispatcher's
// reach. Any status may be archived; the archive write drops the schedule
// along with the status, and an in-flight cycle's final write simply
// loses its claim.
func (s *postService) Archive(ctx context.Context, userID, postID int64) error {
	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		return ErrPostNotFound
	}
	return s.pr.Archive(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		return ErrPostNotFound
	}
	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	return nil
}
