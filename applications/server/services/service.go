package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/formproxy/applications/server"
	"github.com/donmikel/formproxy/applications/server/domain"
	"github.com/donmikel/formproxy/applications/server/interfaces"
	"github.com/donmikel/formproxy/applications/server/transform"
)

const (
	defaultAssetBaseURL      = "https://wufoo.com"
	defaultDeleteConcurrency = 8
)

var errVendorNotConfigured = errors.New("form vendor is not configured")

type service struct {
	vendor            interfaces.FormVendor
	pictures          interfaces.PictureStore
	assetBaseURL      string
	deleteConcurrency int
	logger            log.Logger
	pending           sync.WaitGroup
}

type Option func(*service)

// WithAssetBaseURL sets the origin relative vendor assets are resolved against.
func WithAssetBaseURL(baseURL string) Option {
	return func(s *service) {
		s.assetBaseURL = baseURL
	}
}

// WithDeleteConcurrency bounds the number of in-flight picture deletions.
func WithDeleteConcurrency(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.deleteConcurrency = n
		}
	}
}

func NewService(vendor interfaces.FormVendor, pictures interfaces.PictureStore, logger log.Logger, opts ...Option) server.FormService {
	s := &service{
		vendor:            vendor,
		pictures:          pictures,
		assetBaseURL:      defaultAssetBaseURL,
		deleteConcurrency: defaultDeleteConcurrency,
		logger:            logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) GetForm(ctx context.Context, formHash string) (domain.FormHTML, error) {
	const op = "getForm"
	if !s.vendor.Configured() {
		return domain.NoConfigFormHTML(), domain.NewError(domain.ConfigMissing, op, errVendorNotConfigured)
	}

	page, err := s.vendor.FormHTML(ctx, formHash)
	if err != nil {
		return domain.FormHTML{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.rewrite(op, page, false)
}

func (s *service) GetForms(ctx context.Context) (domain.FormList, error) {
	const op = "getForms"
	if !s.vendor.Configured() {
		return domain.NoConfigFormList(), domain.NewError(domain.ConfigMissing, op, errVendorNotConfigured)
	}

	data, err := s.vendor.Forms(ctx)
	if err != nil {
		return domain.FormList{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.FormList{Data: data}, nil
}

func (s *service) SubmitForm(ctx context.Context, fields []domain.FormField, submissionURL string) (domain.FormHTML, error) {
	const op = "submitForm"

	parts, encodeErr := transform.Encode(fields)
	if encodeErr != nil {
		encodeErr = fmt.Errorf("%s: %w", op, encodeErr)
	}

	level.Info(s.logger).Log("msg", "form fields encoded",
		"fields", len(fields),
		"parts", len(parts),
	)

	page, err := s.vendor.Submit(ctx, submissionURL, parts)
	if err != nil {
		return domain.FormHTML{}, errors.Join(encodeErr, fmt.Errorf("%s: %w", op, err))
	}

	result, err := s.rewrite(op, page, true)
	return result, errors.Join(encodeErr, err)
}

func (s *service) PostPicture(ctx context.Context, picture domain.Picture) (domain.Status, error) {
	const op = "postPicture"
	picture.Transferred = false

	record, err := s.pictures.Create(ctx, picture)
	if err != nil {
		return domain.Status{Status: domain.StatusFail}, domain.NewError(domain.StoreFailed, op, err)
	}

	level.Info(s.logger).Log("msg", "picture written", "guid", record.GUID, "ts", picture.Ts)

	return domain.Status{Status: domain.StatusSuccess}, nil
}

func (s *service) GetList(ctx context.Context) (domain.PictureListing, error) {
	const op = "getList"

	list, err := s.pictures.List(ctx)
	if err != nil {
		return domain.PictureListing{
			Status:   domain.StatusOK,
			Pictures: domain.PictureList{List: []domain.PictureRecord{}},
		}, domain.NewError(domain.StoreFailed, op, err)
	}

	return domain.PictureListing{Status: domain.StatusOK, Pictures: list}, nil
}

// DeletePictures dispatches one delete per stored picture and reports ok
// without waiting for them. Failed deletes are logged once the batch drains
// and are never retried.
func (s *service) DeletePictures(ctx context.Context) (domain.Status, error) {
	const op = "deletePictures"
	ok := domain.Status{Status: domain.StatusOK}

	list, err := s.pictures.List(ctx)
	if err != nil {
		return ok, domain.NewError(domain.StoreFailed, op, err)
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.deleteAll(context.WithoutCancel(ctx), list.List)
	}()

	return ok, nil
}

func (s *service) Wait() {
	s.pending.Wait()
}

func (s *service) deleteAll(ctx context.Context, records []domain.PictureRecord) {
	var (
		mu   sync.Mutex
		errs []error
	)

	var group errgroup.Group
	group.SetLimit(s.deleteConcurrency)

	for _, record := range records {
		guid := record.GUID
		group.Go(func() error {
			if err := s.pictures.Delete(ctx, guid); err != nil {
				mu.Lock()
				errs = append(errs, domain.NewError(domain.StoreFailed, "deletePictures", err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	if err := errors.Join(errs...); err != nil {
		level.Error(s.logger).Log("msg", "pictures not deleted",
			"failed", len(errs),
			"total", len(records),
			"err", err,
		)
		return
	}

	level.Info(s.logger).Log("msg", "pictures deleted", "count", len(records))
}

func (s *service) rewrite(op, page string, removeTrailingScript bool) (domain.FormHTML, error) {
	html, err := transform.Rewrite(page, s.assetBaseURL, removeTrailingScript)
	if err != nil {
		return domain.FormHTML{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.FormHTML{HTML: &html}, nil
}
