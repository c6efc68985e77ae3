package workspace

import (
	"errors"
	"io"
	"mime/multipart"
	"net/url"
	"path"
	"strconv"

	"backend-trailscope/internal/activity"
	"backend-trailscope/internal/auth"
	"backend-trailscope/internal/decode"
	"backend-trailscope/internal/selection"
	"backend-trailscope/internal/view"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", func(c *fiber.Ctx) error {
		created, err := svc.Create()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Post("/files", authMiddleware, func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		parts := form.File["file"]
		if len(parts) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}

		workspaceID := auth.WorkspaceID(c)
		results := make([]UploadResult, 0, len(parts))
		loaded := 0
		var lastErr error
		for _, part := range parts {
			name := path.Base(part.Filename)
			data, err := readPart(part)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}

			info, err := svc.Upload(c.Context(), workspaceID, name, data)
			if err != nil {
				lastErr = err
				results = append(results, UploadResult{Name: name, Error: err.Error()})
				continue
			}
			loaded++
			results = append(results, UploadResult{Name: name, OK: true, File: &info})
		}
		if loaded == 0 {
			return httpError(lastErr)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"files": results})
	})

	r.Get("/files", authMiddleware, func(c *fiber.Ctx) error {
		files, err := svc.Files(auth.WorkspaceID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(files)
	})

	r.Put("/files/:name/active", authMiddleware, func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		state, err := svc.Activate(auth.WorkspaceID(c), name)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Get("/view", authMiddleware, func(c *fiber.Ctx) error {
		state, err := svc.State(auth.WorkspaceID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(state)
	})

	r.Post("/selection", authMiddleware, func(c *fiber.Ctx) error {
		var req view.RangeEvent
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		update, err := svc.Select(auth.WorkspaceID(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(update)
	})

	r.Delete("/selection", authMiddleware, func(c *fiber.Ctx) error {
		update, err := svc.Reset(auth.WorkspaceID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(update)
	})

	r.Get("/cursor", authMiddleware, func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Query("index"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
		}
		cursor, err := svc.Hover(auth.WorkspaceID(c), index)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(cursor)
	})

	r.Get("/explorer", authMiddleware, func(c *fiber.Ctx) error {
		dataset := c.Query("dataset", view.DatasetRecords)
		page, err := svc.Explorer(auth.WorkspaceID(c), dataset, c.QueryInt("page", 1))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(page)
	})

	r.Get("/uploads", authMiddleware, func(c *fiber.Ctx) error {
		entries, err := svc.Uploads(c.Context(), auth.WorkspaceID(c), c.QueryInt("limit", 0))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(entries)
	})
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// httpError maps service errors onto status codes.
func httpError(err error) error {
	var decodeErr *decode.Error
	switch {
	case errors.As(err, &decodeErr), errors.Is(err, activity.ErrMissingRecords):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, selection.ErrInvalidRange), errors.Is(err, view.ErrUnknownDataset):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoSnapshot):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrWorkspaceNotFound), errors.Is(err, ErrFileNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
