package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tanishq27/postloom/internal/dispatcher"
	"github.com/tanishq27/postloom/internal/schedule"
	"github.com/tanishq27/postloom/internal/service"
	"github.com/tanishq27/postloom/internal/transfer"
)

type PostHandler struct {
	s       service.PostService
	gateway *dispatcher.Gateway
}

func NewPostHandler(service service.PostService, gateway *dispatcher.Gateway) *PostHandler {
	return &PostHandler{s: service, gateway: gateway}
}

// CreatePost accepts a multipart form: caption, hashtags and targets as
// comma-separated lists, optional date/time/timezone, and an optional
// single image under "media".
func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var file *multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		if files := form.File["media"]; len(files) > 0 {
			file = files[0]
		}
	}

	assetID, _ := strconv.ParseInt(c.FormValue("media_asset_id"), 10, 64)

	pc := &transfer.PostCreation{
		Caption:      c.FormValue("caption"),
		Hashtags:     splitList(c.FormValue("hashtags")),
		Targets:      splitList(c.FormValue("targets")),
		MediaAssetID: assetID,
		Date:         c.FormValue("date"),
		Time:         c.FormValue("time"),
		Timezone:     c.FormValue("timezone"),
	}

	postID, err := h.s.CreatePost(c.Context(), userID, pc, file)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(statusForAuthoringError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"post_id": postID,
	})
}

// UploadMedia stores a single image under "media" and returns its asset id
// for later use in post creation.
func (h *PostHandler) UploadMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)

	file, err := c.FormFile("media")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No media file provided",
		})
	}

	assetID, err := h.s.UploadAsset(c.Context(), userID, file)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"media_asset_id": assetID,
	})
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.Schedule(c.Context(), userID, &req); err != nil {
		return c.Status(statusForAuthoringError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
	})
}

// PublishNow forces an immediate publish of one post to one platform.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PublishNowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	outcome, err := h.gateway.PostNow(c.Context(), userID, req.PostID, req.Platform)
	if err != nil {
		switch {
		case errors.Is(err, dispatcher.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, dispatcher.ErrPublishInProgress),
			errors.Is(err, dispatcher.ErrAlreadyPublished):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, dispatcher.ErrNotPublishable),
			errors.Is(err, dispatcher.ErrNotTargeted):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Unable to publish post"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post doesn't exist",
			})
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

// ListAttempts returns the full append-only publish history of one post.
func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	attempts, err := h.s.Attempts(c.Context(), userID, int64(postID))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post doesn't exist",
		})
	}

	return c.Status(fiber.StatusOK).JSON(attempts)
}

func (h *PostHandler) ArchivePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Archive(c.Context(), userID, int64(postID)); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Post doesn't exist",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func statusForAuthoringError(err error) int {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest
	}
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrQuotaExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrScheduleInPast),
		errors.Is(err, schedule.ErrInvalidSchedule):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
