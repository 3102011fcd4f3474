package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/formproxy/applications/server/config"
	"github.com/donmikel/formproxy/applications/server/domain"
)

type stubService struct {
	formHTML domain.FormHTML
	formList domain.FormList
	status   domain.Status
	listing  domain.PictureListing
	err      error

	gotFormHash string
	gotFields   []domain.FormField
	gotURL      string
	gotPicture  domain.Picture
}

func (s *stubService) GetForm(ctx context.Context, formHash string) (domain.FormHTML, error) {
	s.gotFormHash = formHash
	return s.formHTML, s.err
}

func (s *stubService) GetForms(ctx context.Context) (domain.FormList, error) {
	return s.formList, s.err
}

func (s *stubService) SubmitForm(ctx context.Context, fields []domain.FormField, submissionURL string) (domain.FormHTML, error) {
	s.gotFields = fields
	s.gotURL = submissionURL
	return s.formHTML, s.err
}

func (s *stubService) PostPicture(ctx context.Context, picture domain.Picture) (domain.Status, error) {
	s.gotPicture = picture
	return s.status, s.err
}

func (s *stubService) GetList(ctx context.Context) (domain.PictureListing, error) {
	return s.listing, s.err
}

func (s *stubService) DeletePictures(ctx context.Context) (domain.Status, error) {
	return s.status, s.err
}

func (s *stubService) Wait() {}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetFormHandler(t *testing.T) {
	page := `<script src="https://wufoo.com/x.js"></script>`
	svc := &stubService{formHTML: domain.FormHTML{HTML: &page}}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/getForm", `{"form_hash":"z7x3p9"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"html":"<script src=\"https://wufoo.com/x.js\"></script>"}`, rec.Body.String())
	assert.Equal(t, "z7x3p9", svc.gotFormHash)
}

func TestGetFormHandler_FailureStillAnswersOK(t *testing.T) {
	svc := &stubService{err: domain.NewError(domain.UpstreamRequestFailed, "getForm", errors.New("refused"))}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/getForm", `{"form_hash":"z7x3p9"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"html":null}`, rec.Body.String())
}

func TestGetFormsHandler_NoConfig(t *testing.T) {
	svc := &stubService{formList: domain.NoConfigFormList(), err: domain.NewError(domain.ConfigMissing, "getForms", nil)}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/getForms", ``)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"error":"No config."}`, rec.Body.String())
}

func TestGetFormsHandler_PassesDataThrough(t *testing.T) {
	svc := &stubService{formList: domain.FormList{Data: json.RawMessage(`{"Forms":[{"Hash":"z7x3p9"}]}`)}}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/getForms", `{}`)

	assert.JSONEq(t, `{"data":{"Forms":[{"Hash":"z7x3p9"}]}}`, rec.Body.String())
}

func TestSubmitFormHandler(t *testing.T) {
	page := `<p>Thanks</p>`
	svc := &stubService{formHTML: domain.FormHTML{HTML: &page}}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	body := `{
		"form_submission_url": "https://acme.wufoo.com/forms/z7x3p9/#public",
		"form_data": [
			{"name": "Field1", "type": "text", "value": "Jane"},
			{"name": "Field2", "type": "text"},
			{"name": "Field3", "type": "file", "value": "QUI=", "filename": "photo", "extension": "png"}
		]
	}`
	rec := serve(t, router, http.MethodPost, "/cloud/submitForm", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"html":"<p>Thanks</p>"}`, rec.Body.String())
	assert.Equal(t, "https://acme.wufoo.com/forms/z7x3p9/#public", svc.gotURL)
	require.Len(t, svc.gotFields, 3)
	require.NotNil(t, svc.gotFields[0].Value)
	assert.Equal(t, "Jane", *svc.gotFields[0].Value)
	assert.Nil(t, svc.gotFields[1].Value)
	assert.Equal(t, domain.FieldTypeFile, svc.gotFields[2].Type)
	assert.Equal(t, "png", svc.gotFields[2].Extension)
}

func TestPostPictureHandler(t *testing.T) {
	svc := &stubService{status: domain.Status{Status: domain.StatusSuccess}}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/postPicture",
		`{"data":"QUI=","ts":1700000000000,"formUrl":"https://acme.wufoo.com/forms/a/"}`)

	assert.JSONEq(t, `{"status":"Success"}`, rec.Body.String())
	assert.Equal(t, domain.Picture{Data: "QUI=", Ts: 1700000000000, FormURL: "https://acme.wufoo.com/forms/a/"}, svc.gotPicture)
}

func TestGetListHandler(t *testing.T) {
	svc := &stubService{listing: domain.PictureListing{
		Status: domain.StatusOK,
		Pictures: domain.PictureList{Count: 1, List: []domain.PictureRecord{
			{GUID: "g1", Type: domain.PictureType, Fields: domain.Picture{Data: "QUI=", Ts: 5, FormURL: "u"}},
		}},
	}}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/getList", ``)

	assert.JSONEq(t, `{"status":"ok","pictures":{"count":1,"list":[
		{"guid":"g1","type":"pictures","fields":{"data":"QUI=","ts":5,"formUrl":"u","transferred":false}}
	]}}`, rec.Body.String())
}

func TestDeletePicturesHandler(t *testing.T) {
	svc := &stubService{status: domain.Status{Status: domain.StatusOK}}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodPost, "/cloud/deletePictures", ``)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandlers_InvalidParams(t *testing.T) {
	router := NewRouter(&stubService{}, config.Api{}, log.NewNopLogger())

	for _, path := range []string{"/cloud/getForm", "/cloud/submitForm", "/cloud/postPicture"} {
		rec := serve(t, router, http.MethodPost, path, `{"form_hash":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestHandlers_ParamsTooLarge(t *testing.T) {
	svc := &stubService{}
	router := NewRouter(svc, config.Api{}, log.NewNopLogger())

	body := `{"data":"` + strings.Repeat("A", maxParamsBytes) + `","ts":1}`
	rec := serve(t, router, http.MethodPost, "/cloud/postPicture", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, svc.gotPicture.Data)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(&stubService{}, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodGet, "/cloud/getForm", ``)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPingHandler(t *testing.T) {
	router := NewRouter(&stubService{}, config.Api{}, log.NewNopLogger())

	rec := serve(t, router, http.MethodGet, "/sys/info/ping", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"OK"`, rec.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	svc := &stubService{status: domain.Status{Status: domain.StatusOK}}
	router := NewRouter(svc, config.Api{RateLimit: 1}, log.NewNopLogger())

	first := serve(t, router, http.MethodPost, "/cloud/getList", ``)
	assert.Equal(t, http.StatusOK, first.Code)

	second := serve(t, router, http.MethodPost, "/cloud/getList", ``)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"status":"Request Failed","body":"The API is at capacity, try again later."}`, second.Body.String())

	ping := serve(t, router, http.MethodGet, "/sys/info/ping", ``)
	assert.Equal(t, http.StatusOK, ping.Code)
}
