package internal

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/derWhity/stagehand/internal/ctxhelper"
	"github.com/derWhity/stagehand/internal/folders"
	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
	"github.com/derWhity/stagehand/internal/repos"
)

// PerformanceService provides service functions for working with performances and their remote folders
type PerformanceService interface {
	// List returns all performances, newest first
	List(ctx context.Context) ([]models.Performance, error)
	// Get returns the performance with the given ID
	Get(ctx context.Context, id string) (*models.Performance, error)
	// Create creates a remote folder for the new performance and stores it afterwards
	Create(ctx context.Context, input *models.PerformanceInput) (*models.Performance, error)
	// Update changes the fields present in the patch
	Update(ctx context.Context, patch *models.PerformancePatch) (*models.Performance, error)
	// Delete removes the performance and - on a best-effort basis - its remote folder
	Delete(ctx context.Context, id string) error
}

// PerformanceOptions changes the behaviour of the performance service
type PerformanceOptions struct {
	// Delete the freshly created folder again when the performance could not be stored
	CleanupOnFailedInsert bool
}

// -- PerformanceService implementation --------------------------------------------------------------------------------

type performanceService struct {
	repo     repos.PerformanceRepo
	folders  folders.Service
	opts     PerformanceOptions
	logger   *logrus.Entry
	validate *validator.Validate
}

// NewPerformanceService creates a new performance service instance
func NewPerformanceService(
	repo repos.PerformanceRepo,
	fs folders.Service,
	opts PerformanceOptions,
	logger *logrus.Entry,
) PerformanceService {
	if fs == nil {
		fs = folders.Disabled{}
	}
	validate := validator.New()
	// Report the field names the client knows
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &performanceService{
		repo:     repo,
		folders:  fs,
		opts:     opts,
		logger:   logger,
		validate: validate,
	}
}

func (s *performanceService) loggerFor(ctx context.Context) *logrus.Entry {
	return ctxhelper.Logger(ctx, s.logger)
}

// repoError converts an error returned by the repository into a service error
func repoError(err error, id, action string) error {
	if err == repos.ErrEntityNotExisting {
		return MakeError(http.StatusNotFound, ErrCodePerformanceNotFound,
			fmt.Sprintf("Performance '%s' does not exist", id),
		)
	}
	return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
		fmt.Sprintf("Error while %s", action), err,
	)
}

// internalError converts a recovered panic into a service error
func internalError(op string, recovered interface{}) error {
	return MakeErrorWithData(http.StatusInternalServerError, ErrCodeInternal,
		fmt.Sprintf("%s: Unexpected failure", op), fmt.Errorf("%v", recovered),
	)
}

// validationError converts the result of a struct validation into a service error
func validationError(err error) error {
	fields := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				fields[fe.Field()] = "is required"
			case "max":
				fields[fe.Field()] = fmt.Sprintf("must not exceed %s characters", fe.Param())
			default:
				fields[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
			}
		}
	}
	if len(fields) == 0 {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue, "Validation failed", err)
	}
	return MakeErrorWithData(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Validation failed", fields)
}

// List returns all performances, newest first
func (s *performanceService) List(ctx context.Context) ([]models.Performance, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, repoError(err, "", "listing performances")
	}
	if list == nil {
		list = []models.Performance{}
	}
	return list, nil
}

// Get returns the performance with the given ID
func (s *performanceService) Get(ctx context.Context, id string) (*models.Performance, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, id, fmt.Sprintf("retrieving performance '%s'", id))
	}
	return p, nil
}

// Create creates a remote folder for the new performance and stores it afterwards.
// A failing folder service never stops the performance from being created - it just won't have a folder.
func (s *performanceService) Create(ctx context.Context, input *models.PerformanceInput) (ret *models.Performance, err error) {
	logger := s.loggerFor(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Create: Recovered from panic")
			ret, err = nil, internalError("Create", r)
		}
	}()
	// The caller's input stays untouched
	in := *input
	in.Title = strings.TrimSpace(in.Title)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if err := s.validate.Struct(&in); err != nil {
		return nil, validationError(err)
	}
	logger = logger.WithField(log.FldTitle, in.Title)

	folderID := s.createFolder(ctx, logger, in.Title)
	p := &models.Performance{
		Title:         in.Title,
		Description:   in.Description,
		CoverImage:    in.CoverImage,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		TaggedUsers:   models.UserIDs(in.TaggedUsers),
		CreatedBy:     in.CreatedBy,
		DriveFolderID: folderID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		logger.WithError(err).Error("Failed to store new performance")
		if folderID != nil {
			if s.opts.CleanupOnFailedInsert {
				s.deleteFolder(ctx, logger, *folderID)
			} else {
				logger.WithField(log.FldFolder, *folderID).Warn("Folder has been left without a performance")
			}
		}
		return nil, repoError(err, "", "storing the new performance")
	}
	logger.WithField(log.FldID, p.ID).Info("Performance created")
	return p, nil
}

// createFolder asks the folder service for a new folder. Every failure is logged and results in no folder.
func (s *performanceService) createFolder(ctx context.Context, logger *logrus.Entry, title string) (folderID *string) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Folder service panicked while creating a folder")
			folderID = nil
		}
	}()
	id, err := s.folders.CreateFolder(ctx, title)
	if err != nil {
		logger.WithError(err).Warn("Failed to create folder - continuing without")
		return nil
	}
	if id == "" {
		logger.Debug("No folder created")
		return nil
	}
	logger.WithField(log.FldFolder, id).Debug("Folder created")
	return &id
}

// deleteFolder asks the folder service to remove a folder. Every outcome is only logged.
func (s *performanceService) deleteFolder(ctx context.Context, logger *logrus.Entry, folderID string) {
	logger = logger.WithField(log.FldFolder, folderID)
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Folder service panicked while deleting a folder")
		}
	}()
	deleted, err := s.folders.DeleteFolder(ctx, folderID)
	switch {
	case err != nil:
		logger.WithError(err).Warn("Failed to delete folder")
	case !deleted:
		logger.Warn("Folder to delete did not exist")
	default:
		logger.Debug("Folder deleted")
	}
}

// checkPatch validates the patch and returns a copy with the title trimmed
func (s *performanceService) checkPatch(patch *models.PerformancePatch) (*models.PerformancePatch, error) {
	checked := *patch
	fields := map[string]string{}
	if patch.Title.Set {
		if patch.Title.Value == nil {
			fields["title"] = "must not be null"
		} else {
			title := strings.TrimSpace(*patch.Title.Value)
			if err := s.validate.Var(title, fmt.Sprintf("required,max=%d", models.MaxTitleLength)); err != nil {
				fields["title"] = fmt.Sprintf("must be set and not exceed %d characters", models.MaxTitleLength)
			}
			checked.Title = models.Some(title)
		}
	}
	dates := map[string]models.OptionalString{"startDate": patch.StartDate, "endDate": patch.EndDate}
	for name, date := range dates {
		if !date.Set || date.Value == nil {
			continue
		}
		if err := s.validate.Var(*date.Value, fmt.Sprintf("max=%d", models.MaxDateLength)); err != nil {
			fields[name] = fmt.Sprintf("must not exceed %d characters", models.MaxDateLength)
		}
	}
	if len(fields) > 0 {
		return nil, MakeErrorWithData(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Validation failed", fields)
	}
	return &checked, nil
}

// Update changes the fields present in the patch
func (s *performanceService) Update(ctx context.Context, patch *models.PerformancePatch) (*models.Performance, error) {
	patch, err := s.checkPatch(patch)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, patch)
	if err != nil {
		s.loggerFor(ctx).WithError(err).WithField(log.FldID, patch.ID).Error("Failed to update performance")
		return nil, repoError(err, patch.ID, fmt.Sprintf("updating performance '%s'", patch.ID))
	}
	return p, nil
}

// Delete removes the performance and - on a best-effort basis - its remote folder.
// The record is deleted even when it could not be read before or its folder could not be removed.
func (s *performanceService) Delete(ctx context.Context, id string) (err error) {
	logger := s.loggerFor(ctx).WithField(log.FldID, id)
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Delete: Recovered from panic")
			err = internalError("Delete", r)
		}
	}()
	p, err := s.repo.GetByID(ctx, id)
	switch {
	case err == repos.ErrEntityNotExisting:
		logger.Debug("Performance to delete not found - trying to delete anyway")
	case err != nil:
		logger.WithError(err).Warn("Failed to load performance before deleting - folder is left untouched")
	case p.DriveFolderID != nil && *p.DriveFolderID != "":
		s.deleteFolder(ctx, logger, *p.DriveFolderID)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err != repos.ErrEntityNotExisting {
			logger.WithError(err).Error("Failed to delete performance")
		}
		return repoError(err, id, fmt.Sprintf("deleting performance '%s'", id))
	}
	logger.Info("Performance deleted")
	return nil
}
